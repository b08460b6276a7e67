// Package config loads application configuration from YAML with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// Store backend names accepted in configuration.
const (
	StoreCSV    = "csv"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config defines the application configuration.
type Config struct {
	// Tenants is the ordered set of billing units, at least two.
	Tenants []string `yaml:"tenants"`

	// Currency prefixes balance amounts in the ledger file and reports.
	Currency string `yaml:"currency"`

	// Store selects the ledger backend: csv, sqlite or memory.
	Store string `yaml:"store"`

	// LedgerPath is the CSV file or SQLite database path.
	LedgerPath string `yaml:"ledger_path"`

	// SamplePath optionally points at a seed CSV offered on first run.
	SamplePath string `yaml:"sample_path"`

	// Listen is the HTTP server address.
	Listen string `yaml:"listen"`

	// OutputDir is where generated reports are written.
	OutputDir string `yaml:"output_dir"`

	// StrictOrder rejects appends whose timestamp precedes the last
	// record's. Off by default so backdated entries remain possible.
	StrictOrder bool `yaml:"strict_order"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Tenants:    []string{"Ground Floor", "First Floor", "Second Floor"},
		Currency:   "Rs.",
		Store:      StoreCSV,
		LedgerPath: "transactions.csv",
		SamplePath: "sample_transactions.csv",
		Listen:     ":8080",
		OutputDir:  "outputs",
	}
}

// Load reads configuration from path (optional, "" means defaults only)
// and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BILLING_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("BILLING_LEDGER_PATH"); v != "" {
		cfg.LedgerPath = v
	}
	if v := os.Getenv("BILLING_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("BILLING_STORE"); v != "" {
		cfg.Store = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if len(c.Tenants) < 2 {
		return fmt.Errorf("config: need at least 2 tenants, got %d", len(c.Tenants))
	}
	switch c.Store {
	case StoreCSV, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store)
	}
	if c.Store != StoreMemory && c.LedgerPath == "" {
		return errors.New("config: ledger_path required")
	}
	return nil
}

// TenantSet builds the billing.TenantSet from the configured names.
func (c Config) TenantSet() (billing.TenantSet, error) {
	return billing.NewTenantSet(c.Tenants...)
}
