package config

import (
	"fmt"
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"zecrep"`
	Password string `env:"PASSWORD"                envDefault:"zecrep"`
	Name     string `env:"NAME"                    envDefault:"zecrep"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// StorageBackend identifies a storage backend implementation.
type StorageBackend string

const (
	// StorageBackendPostgres persists jobs, tiers, and subscriptions in PostgreSQL.
	StorageBackendPostgres StorageBackend = "postgres"
	// StorageBackendMemory keeps everything in-process; development and tests only.
	StorageBackendMemory StorageBackend = "memory"
)

// StorageConfig selects the storage backend for jobs, tier history, and
// webhook subscriptions.
type StorageConfig struct {
	Backend StorageBackend `env:"STORAGE_BACKEND" envDefault:"postgres"`
}

// Sanitize normalises the backend name.
func (s *StorageConfig) Sanitize() {
	s.Backend = StorageBackend(strings.ToLower(strings.TrimSpace(string(s.Backend))))
	if s.Backend == "" {
		s.Backend = StorageBackendPostgres
	}
}

// Validate returns an error when the backend name is unknown.
func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case StorageBackendPostgres, StorageBackendMemory:
		return nil
	default:
		return fmt.Errorf("invalid storage backend: %q (valid options: postgres, memory)", s.Backend)
	}
}

// IsMemory returns true when the in-memory backend is selected.
func (s *StorageConfig) IsMemory() bool {
	return s.Backend == StorageBackendMemory
}

// RedisConfig contains Redis configuration for the tier cache.
type RedisConfig struct {
	// Enabled toggles the Redis-backed tier cache. When false the service
	// reads tiers straight from storage.
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheConfig contains cache behavior configuration.
type CacheConfig struct {
	// TierTTL is the TTL for cached latest-tier lookups.
	TierTTL time.Duration `env:"CACHE_TIER_TTL" envDefault:"5m"`
}
