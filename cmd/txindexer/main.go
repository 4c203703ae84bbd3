// Command txindexer runs the on-chain transaction indexer: it tails
// configured chains' tips and backfills any historical range newly
// watched accounts require.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chaintrace/indexer/internal/adminapi"
	"github.com/chaintrace/indexer/internal/blocksource"
	"github.com/chaintrace/indexer/internal/config"
	"github.com/chaintrace/indexer/internal/engine"
	"github.com/chaintrace/indexer/internal/filter"
	"github.com/chaintrace/indexer/internal/store"
	"github.com/chaintrace/indexer/internal/supervisor"
	"github.com/chaintrace/indexer/internal/watchset"
	"github.com/chaintrace/indexer/log"
)

var app = &cli.App{
	Name:  "txindexer",
	Usage: "indexes EVM on-chain transactions for a dynamic set of watched accounts",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.toml", Usage: "path to the TOML config file"},
		&cli.StringFlag{Name: "log.format", Value: "terminal", Usage: "terminal, json, or logfmt"},
		&cli.StringFlag{Name: "log.level", Value: "info", Usage: "trace, debug, info, warn, error, or crit"},
	},
	Commands: []*cli.Command{
		runCommand,
		migrateCommand,
	},
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "load configuration, apply migrations if needed, and run the indexer",
	Action: func(c *cli.Context) error {
		setupLogging(c)
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		if err := store.Migrate("migrations", cfg.DatabaseURL); err != nil {
			return cli.Exit(fmt.Sprintf("migration failed: %v", err), 1)
		}

		st, err := store.Open(c.Context, cfg.DatabaseURL)
		if err != nil {
			return cli.Exit(fmt.Sprintf("database unreachable: %v", err), 1)
		}
		defer st.Close()

		return runIndexer(c.Context, cfg, st)
	},
}

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "apply pending schema migrations and exit",
	Action: func(c *cli.Context) error {
		setupLogging(c)
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := store.Migrate("migrations", cfg.DatabaseURL); err != nil {
			return cli.Exit(fmt.Sprintf("migration failed: %v", err), 1)
		}
		return nil
	},
}

func setupLogging(c *cli.Context) {
	var level slog.Level
	switch c.String("log.level") {
	case "trace":
		level = log.LevelTrace
	case "debug":
		level = log.LevelDebug
	case "warn":
		level = log.LevelWarn
	case "error":
		level = log.LevelError
	case "crit":
		level = log.LevelCrit
	default:
		level = log.LevelInfo
	}

	switch c.String("log.format") {
	case "json":
		log.SetDefault(log.NewWithHandler(log.JSONHandlerWithLevel(os.Stderr, level)))
	case "logfmt":
		log.SetDefault(log.NewWithHandler(log.LogfmtHandler(os.Stderr)))
	default:
		useColor := isatty.IsTerminal(os.Stderr.Fd())
		out := io.Writer(os.Stderr)
		if useColor {
			out = colorable.NewColorableStderr()
		}
		log.SetDefault(log.NewWithHandler(log.NewTerminalHandlerWithLevel(out, level, useColor)))
	}
}

// runIndexer wires one Supervisor per configured chain plus the admin HTTP
// boundary, and blocks until ctx is cancelled or any chain fails fatally.
func runIndexer(ctx context.Context, cfg config.Config, st store.Interface) error {
	g, gctx := errgroup.WithContext(ctx)
	ws := watchset.New()

	mem := blocksource.NewMemory()

	for _, chainCfg := range cfg.Chains {
		chainCfg := chainCfg
		if err := st.EnsureChain(gctx, chainCfg.ChainID, chainCfg.StartBlock); err != nil {
			return err
		}

		f := filter.New(cfg.InclusionFilterTargetFPR)
		sup := &supervisor.Supervisor{
			ChainID:            chainCfg.ChainID,
			Source:             sourceFor(chainCfg, mem),
			Store:              st,
			Filter:             f,
			Watch:              ws,
			MaxBackfillWorkers: cfg.MaxBackfillWorkersPerChain,
			PollInterval:       cfg.PollInterval(),
			Log:                log.Root().With("chain", chainCfg.ChainID),
		}
		g.Go(func() error {
			err := sup.Run(gctx)
			if engine.Is(err, engine.KindCancelled) {
				return nil
			}
			return err
		})
	}

	admin := &adminapi.Handler{Store: st, Watch: ws, Log: log.Root()}
	server := &http.Server{Addr: cfg.AdminListenAddr, Handler: admin.NewMux()}
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	return g.Wait()
}

// sourceFor returns the blocksource.Source for a chain. Only the in-memory
// demo source is implemented here; a real on-disk-node-database reader is
// out of scope.
func sourceFor(_ config.ChainConfig, mem *blocksource.Memory) blocksource.Source {
	return mem
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
