package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/config"
)

func TestValidateServiceConfig(t *testing.T) {
	t.Parallel()

	require.Error(t, ValidateServiceConfig(nil))

	cfg := &config.AppConfig{
		Storage:  config.StorageConfig{Backend: config.StorageBackendPostgres},
		Services: "http,processor,reaper",
	}
	require.NoError(t, ValidateServiceConfig(cfg))

	cfg.Services = "http,scheduler"
	require.Error(t, ValidateServiceConfig(cfg))

	cfg.Services = ""
	require.Error(t, ValidateServiceConfig(cfg))

	cfg.Services = "http"
	cfg.Storage.Backend = "dynamo"
	err := ValidateServiceConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage backend")
}

func TestGetEnabledServices(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetEnabledServices(nil))

	cfg := &config.AppConfig{Services: "http,reaper"}
	enabled := GetEnabledServices(cfg)
	assert.ElementsMatch(t, []string{"http", "reaper"}, enabled)

	cfg.Services = "bogus"
	assert.Empty(t, GetEnabledServices(cfg))
}
