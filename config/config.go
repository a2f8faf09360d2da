// Package config loads ledger configuration from a YAML file or from
// command-line flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultWALDir          = "./wal/transactions"
	defaultOracleTimeout   = 5 * time.Second
	defaultConflictRetries = 3
)

// Config carries everything the wiring layer needs to build the engine.
type Config struct {
	// WALDir is where the in-memory store set persists the transaction
	// log. Ignored when PostgresDSN is set.
	WALDir string
	// OracleURL is the base URL of the quote API. Empty selects the
	// static simulation oracle.
	OracleURL     string
	OracleToken   string
	OracleTimeout time.Duration
	// PostgresDSN, when set, selects the Postgres store set.
	PostgresDSN string
	// ConflictRetries bounds transparent retries of compare-and-update
	// conflicts before the operation fails.
	ConflictRetries int
}

type configYaml struct {
	WALDir          string        `yaml:"wal_dir,omitempty"`
	OracleURL       string        `yaml:"oracle_url,omitempty"`
	OracleToken     string        `yaml:"oracle_token,omitempty"`
	OracleTimeout   time.Duration `yaml:"oracle_timeout,omitempty"`
	PostgresDSN     string        `yaml:"postgres_dsn,omitempty"`
	ConflictRetries *int          `yaml:"conflict_retries,omitempty"`
}

// Get reads the configuration: --config selects a YAML file, otherwise the
// remaining flags apply.
func Get() (Config, error) {
	path := flag.String("config", "", "path to yaml config")
	walDir := flag.String("waldir", defaultWALDir, "directory for transaction log WAL segments")
	oracleURL := flag.String("oracleurl", "", "base URL of the quote API (empty: static quotes)")
	oracleToken := flag.String("oracletoken", os.Getenv("ORACLE_TOKEN"), "API token for the quote API")
	oracleTimeout := flag.Duration("oracletimeout", defaultOracleTimeout, "timeout for one quote lookup")
	postgresDSN := flag.String("postgres", os.Getenv("POSTGRES_DSN"), "postgres DSN (empty: in-memory stores)")
	conflictRetries := flag.Int("conflictretries", defaultConflictRetries, "retry budget for concurrency conflicts")
	flag.Parse()

	if *path != "" {
		return getYaml(*path)
	}

	cfg := Config{
		WALDir:          *walDir,
		OracleURL:       *oracleURL,
		OracleToken:     *oracleToken,
		OracleTimeout:   *oracleTimeout,
		PostgresDSN:     *postgresDSN,
		ConflictRetries: *conflictRetries,
	}
	return cfg, cfg.validate()
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var raw configYaml
	if err := yaml.Unmarshal(f, &raw); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}

	cfg := Config{
		WALDir:          raw.WALDir,
		OracleURL:       raw.OracleURL,
		OracleToken:     raw.OracleToken,
		OracleTimeout:   raw.OracleTimeout,
		PostgresDSN:     raw.PostgresDSN,
		ConflictRetries: defaultConflictRetries,
	}
	if cfg.WALDir == "" {
		cfg.WALDir = defaultWALDir
	}
	if cfg.OracleTimeout == 0 {
		cfg.OracleTimeout = defaultOracleTimeout
	}
	if raw.ConflictRetries != nil {
		cfg.ConflictRetries = *raw.ConflictRetries
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive, got %s", c.OracleTimeout)
	}
	if c.ConflictRetries < 0 {
		return fmt.Errorf("conflict retries must not be negative, got %d", c.ConflictRetries)
	}
	if c.OracleURL == "" && c.OracleToken != "" {
		return fmt.Errorf("oracle token set without oracle URL")
	}
	return nil
}
