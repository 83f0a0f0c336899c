package config

import "os"

// StoreBackend selects the conversation store implementation.
type StoreBackend string

const (
	// StoreMemory keeps conversations in process memory.
	StoreMemory StoreBackend = "memory"

	// StorePostgres persists conversations in PostgreSQL.
	StorePostgres StoreBackend = "postgres"

	// StoreRedis persists conversations in Redis.
	StoreRedis StoreBackend = "redis"
)

// IsValid checks if the store backend is supported
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreMemory, StorePostgres, StoreRedis:
		return true
	}
	return false
}

// StoreYAMLConfig holds persistence settings from synod.yaml.
// PostgreSQL connection details come from the environment (DB_* variables
// or DATABASE_URL), not from YAML.
type StoreYAMLConfig struct {
	Backend  StoreBackend `yaml:"backend,omitempty"`
	RedisURL string       `yaml:"redis_url,omitempty"`
}

// StoreConfig is the resolved persistence configuration.
type StoreConfig struct {
	Backend  StoreBackend
	RedisURL string
}

// resolveStoreConfig resolves store configuration from YAML, applying
// defaults and environment overrides (SYNOD_STORE, REDIS_URL).
func resolveStoreConfig(y *StoreYAMLConfig) *StoreConfig {
	cfg := &StoreConfig{
		Backend:  StoreMemory,
		RedisURL: "redis://localhost:6379/0",
	}

	if y != nil {
		if y.Backend != "" {
			cfg.Backend = y.Backend
		}
		if y.RedisURL != "" {
			cfg.RedisURL = y.RedisURL
		}
	}

	if v := os.Getenv("SYNOD_STORE"); v != "" {
		cfg.Backend = StoreBackend(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}

	return cfg
}
