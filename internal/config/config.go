// Package config loads the indexer's TOML configuration file and applies
// the defaults documented for each optional setting.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// ChainConfig declares one chain the indexer should index.
type ChainConfig struct {
	ChainID    uint32 `toml:"chain_id"`
	StartBlock uint64 `toml:"start_block"`
	Endpoint   string `toml:"endpoint"`
}

// Config is the top-level configuration document.
type Config struct {
	Chains                     []ChainConfig `toml:"chains"`
	PollIntervalMS             int           `toml:"poll_interval_ms"`
	MaxBackfillWorkersPerChain int64         `toml:"max_backfill_workers_per_chain"`
	InclusionFilterTargetFPR   float64       `toml:"inclusion_filter_target_fpr"`
	DatabaseURL                string        `toml:"database_url"`
	AdminListenAddr            string        `toml:"admin_listen_addr"`
}

const (
	defaultPollIntervalMS             = 1000
	defaultMaxBackfillWorkersPerChain = 4
	defaultInclusionFilterTargetFPR   = 0.01
	defaultAdminListenAddr            = ":8080"
)

// Load reads and decodes the TOML file at path, applying defaults for any
// optional field left unset, then validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = defaultPollIntervalMS
	}
	if c.MaxBackfillWorkersPerChain <= 0 {
		c.MaxBackfillWorkersPerChain = defaultMaxBackfillWorkersPerChain
	}
	if c.InclusionFilterTargetFPR <= 0 || c.InclusionFilterTargetFPR >= 1 {
		c.InclusionFilterTargetFPR = defaultInclusionFilterTargetFPR
	}
	if c.AdminListenAddr == "" {
		c.AdminListenAddr = defaultAdminListenAddr
	}
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: database_url is required")
	}
	if len(c.Chains) == 0 {
		return fmt.Errorf("config: at least one chain must be declared")
	}
	seen := make(map[uint32]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if seen[ch.ChainID] {
			return fmt.Errorf("config: duplicate chain_id %d", ch.ChainID)
		}
		seen[ch.ChainID] = true
	}
	return nil
}

// PollInterval returns PollIntervalMS as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
