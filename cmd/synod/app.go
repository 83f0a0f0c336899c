package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/database"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	store   store.ConversationStore
	closers []func()
}

// Close releases everything bootstrap and openStore acquired, most recent
// first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// bootstrap loads the .env file, configures logging, and parses the
// configuration directory. Stdout carries NDJSON events, so every log line
// goes to stderr.
func (o *options) bootstrap(ctx context.Context) (*app, error) {
	configDir := o.ConfigDir
	if configDir == "" {
		configDir = getEnv("CONFIG_DIR", "./config")
	}

	envPath := filepath.Join(configDir, ".env")
	envErr := godotenv.Load(envPath)

	setupLogging()

	if envErr != nil {
		slog.Debug("No .env file loaded, continuing with existing environment",
			"path", envPath, "error", envErr)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}
	return &app{cfg: cfg}, nil
}

// setupLogging routes structured logs to stderr at the LOG_LEVEL level.
func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// registry builds the provider roster from the loaded configuration.
func (a *app) registry() (*llm.Registry, error) {
	registry, err := llm.NewRegistry(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build model registry: %w", err)
	}
	return registry, nil
}

// openStore connects the configured conversation store backend.
func (a *app) openStore(ctx context.Context) (store.ConversationStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load database config: %w", err)
		}
		client, err := database.NewClient(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		})
		if health, err := client.Health(ctx); err == nil {
			slog.Debug("Database health",
				"status", health.Status,
				"response_time_ms", health.ResponseTime,
				"open_connections", health.OpenConnections)
		}
		slog.Info("Connected to PostgreSQL database")
		a.store = store.NewPostgresStore(client)

	case config.StoreRedis:
		redisStore, err := store.NewRedisStore(ctx, a.cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := redisStore.Close(); err != nil {
				slog.Error("Error closing redis client", "error", err)
			}
		})
		slog.Info("Connected to Redis")
		a.store = redisStore

	default:
		slog.Info("Using in-memory conversation store")
		a.store = store.NewMemoryStore()
	}
	return a.store, nil
}
