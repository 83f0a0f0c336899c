package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// SynodYAMLConfig represents the complete synod.yaml file structure
type SynodYAMLConfig struct {
	Council *CouncilYAMLConfig `yaml:"council"`
	Store   *StoreYAMLConfig   `yaml:"store"`
}

// ModelsYAMLConfig represents the complete models.yaml file structure
type ModelsYAMLConfig struct {
	Providers map[string]*ProviderConfig `yaml:"providers"`
	Models    []ModelConfig              `yaml:"models"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in defaults
//  5. Apply environment overrides
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	// 1. Load configuration files
	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Validate all configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"providers", stats.Providers,
		"models", stats.Models,
		"chairman", cfg.Council.ChairmanModelID,
		"store", cfg.Store.Backend)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load synod.yaml (council + store settings)
	synodConfig, err := loader.loadSynodYAML()
	if err != nil {
		return nil, NewLoadError("synod.yaml", err)
	}

	// 2. Load models.yaml (providers + model roster)
	modelsConfig, err := loader.loadModelsYAML()
	if err != nil {
		return nil, NewLoadError("models.yaml", err)
	}

	// 3. Resolve council config (merge user YAML with built-in defaults)
	// Start with defaults, then merge user config on top to preserve unset defaults
	councilYAML := DefaultCouncilYAML()
	if synodConfig.Council != nil {
		// Merge user-provided config into defaults (non-zero values override)
		if err := mergo.Merge(councilYAML, synodConfig.Council, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge council config: %w", err)
		}
	}
	councilConfig := resolveCouncilConfig(councilYAML)

	// 4. Resolve store config (defaults + env overrides)
	storeConfig := resolveStoreConfig(synodConfig.Store)

	// 5. Apply model defaults
	for i := range modelsConfig.Models {
		if modelsConfig.Models[i].DisplayName == "" {
			modelsConfig.Models[i].DisplayName = modelsConfig.Models[i].ID
		}
	}

	return &Config{
		configDir: configDir,
		Models:    modelsConfig,
		Council:   councilConfig,
		Store:     storeConfig,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadSynodYAML() (*SynodYAMLConfig, error) {
	var config SynodYAMLConfig

	if err := l.loadYAML("synod.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadModelsYAML() (*ModelsConfig, error) {
	var config ModelsYAMLConfig

	// Initialize map to avoid nil maps
	config.Providers = make(map[string]*ProviderConfig)

	if err := l.loadYAML("models.yaml", &config); err != nil {
		return nil, err
	}

	return &ModelsConfig{
		Providers: config.Providers,
		Models:    config.Models,
	}, nil
}
