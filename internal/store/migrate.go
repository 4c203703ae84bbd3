package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/chaintrace/indexer/internal/engine"
)

// Migrate applies every pending schema migration under migrationsPath to
// the database at databaseURL. It is idempotent: running it against an
// up-to-date schema is a no-op. Any failure here is KindFatal, since the
// process cannot safely continue against an unknown schema.
func Migrate(migrationsPath, databaseURL string) error {
	m, err := migrate.New("file://"+migrationsPath, "pgx5://"+databaseURL)
	if err != nil {
		return engine.Fatal(fmt.Errorf("open migrator: %w", err))
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return engine.Fatal(fmt.Errorf("apply migrations: %w", err))
	}
	return nil
}
