package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anantdark/tenant-electricity-bill-calculator/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, config.StoreCSV, cfg.Store)
	assert.Len(t, cfg.Tenants, 3)

	_, err := cfg.TenantSet()
	assert.NoError(t, err)
}

func TestLoad_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tenants:
  - Unit A
  - Unit B
currency: "$"
store: sqlite
ledger_path: ledger.db
listen: ":9090"
strict_order: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.StoreSQLite, cfg.Store)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.True(t, cfg.StrictOrder)
	assert.Equal(t, []string{"Unit A", "Unit B"}, cfg.Tenants)
	assert.Equal(t, "$", cfg.Currency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BILLING_LEDGER_PATH", "/tmp/override.csv")
	t.Setenv("BILLING_LISTEN", ":7070")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.csv", cfg.LedgerPath)
	assert.Equal(t, ":7070", cfg.Listen)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	t.Run("too few tenants", func(t *testing.T) {
		cfg := config.Default()
		cfg.Tenants = []string{"Only One"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing ledger path", func(t *testing.T) {
		cfg := config.Default()
		cfg.LedgerPath = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("memory store needs no path", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store = config.StoreMemory
		cfg.LedgerPath = ""
		assert.NoError(t, cfg.Validate())
	})
}
