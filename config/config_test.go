package config_test

import (
	"os"
	"testing"

	"github.com/PuneetDabral/crawlreg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("STORE_DSN", "redis://localhost:6379")
	os.Setenv("CATALOG_URL", "http://localhost:9000")
	os.Setenv("ENV", "test")
	defer func() {
		os.Unsetenv("STORE_DSN")
		os.Unsetenv("CATALOG_URL")
		os.Unsetenv("ENV")
	}()

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379", cfg.StoreDSN)
	assert.Equal(t, "http://localhost:9000", cfg.CatalogURL)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, 1, cfg.MinCrawlRPS)
	assert.Equal(t, 100, cfg.MaxCrawlRPS)
}

func TestLoadRejectsInvertedRPSBounds(t *testing.T) {
	os.Setenv("MIN_CRAWL_RPS", "50")
	os.Setenv("MAX_CRAWL_RPS", "10")
	defer func() {
		os.Unsetenv("MIN_CRAWL_RPS")
		os.Unsetenv("MAX_CRAWL_RPS")
	}()

	_, err := config.Load()
	assert.Error(t, err)
}
