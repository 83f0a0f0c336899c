package config

// Config is the umbrella configuration object that encapsulates
// the model roster, council settings, and persistence settings.
// This is the primary object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// Provider credentials and the model roster
	Models *ModelsConfig

	// Council orchestration settings (chairman, sampling, time limits)
	Council *CouncilConfig

	// Conversation persistence settings
	Store *StoreConfig
}

// Initialize is defined in loader.go

// Stats contains statistics about loaded configuration
type Stats struct {
	Providers int
	Models    int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.Models != nil {
		s.Providers = len(c.Models.Providers)
		s.Models = len(c.Models.Models)
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider retrieves a provider configuration by tag.
// This is a convenience method that wraps ModelsConfig.Provider().
func (c *Config) GetProvider(tag ProviderTag) (*ProviderConfig, bool) {
	return c.Models.Provider(tag)
}

// GetModel retrieves a roster entry by model id.
// This is a convenience method that wraps ModelsConfig.Model().
func (c *Config) GetModel(id string) (*ModelConfig, bool) {
	return c.Models.Model(id)
}

// ChairmanModelID returns the configured synthesis model id.
func (c *Config) ChairmanModelID() string {
	return c.Council.ChairmanModelID
}

// DefaultModelIDs returns the councilors used when a request selects none.
func (c *Config) DefaultModelIDs() []string {
	return c.Council.DefaultModels
}
