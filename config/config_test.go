package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    map[ServiceMode]bool
		wantErr bool
	}{
		{
			name:  "single service",
			input: "http",
			want:  map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:  "all services",
			input: "http,processor,reaper",
			want: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeProcessor: true,
				ServiceModeReaper:    true,
			},
		},
		{
			name:  "whitespace tolerated",
			input: " http , processor ",
			want: map[ServiceMode]bool{
				ServiceModeHTTP:      true,
				ServiceModeProcessor: true,
			},
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only commas",
			input:   ",,,",
			wantErr: true,
		},
		{
			name:    "unknown service",
			input:   "http,scheduler",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseServices(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppConfig_ServiceToggles(t *testing.T) {
	t.Parallel()

	cfg := AppConfig{Services: "http,reaper"}
	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.False(t, cfg.IsProcessorEnabled())
	assert.True(t, cfg.IsReaperEnabled())

	cfg.Services = "bogus"
	assert.False(t, cfg.IsHTTPServerEnabled())
}

func TestStorageConfig(t *testing.T) {
	t.Parallel()

	cfg := StorageConfig{Backend: "  Memory "}
	cfg.Sanitize()
	assert.Equal(t, StorageBackendMemory, cfg.Backend)
	assert.True(t, cfg.IsMemory())
	require.NoError(t, cfg.Validate())

	cfg = StorageConfig{}
	cfg.Sanitize()
	assert.Equal(t, StorageBackendPostgres, cfg.Backend)
	assert.False(t, cfg.IsMemory())
	require.NoError(t, cfg.Validate())

	cfg = StorageConfig{Backend: "dynamo"}
	cfg.Sanitize()
	require.Error(t, cfg.Validate())
}

func TestProverConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := ProverConfig{URL: " http://prover:4101/ ", Timeout: -1}
	cfg.Sanitize()
	assert.Equal(t, "http://prover:4101", cfg.URL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestProcessorConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := ProcessorConfig{Interval: time.Millisecond, BatchSize: 0}
	cfg.Sanitize()
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, 1, cfg.BatchSize)

	cfg = ProcessorConfig{Interval: 30 * time.Second, BatchSize: 25}
	cfg.Sanitize()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 25, cfg.BatchSize)
}

func TestWebhookConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := WebhookConfig{Timeout: 0, MaxConcurrent: -3}
	cfg.Sanitize()
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.MaxConcurrent)
}

func TestReaperConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := ReaperConfig{Interval: time.Second, JobMaxAge: 0}
	cfg.Sanitize()
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 168*time.Hour, cfg.JobMaxAge)
}
