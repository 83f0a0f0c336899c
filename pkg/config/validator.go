package config

import (
	"fmt"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: providers → models → council → store
	// This ensures dependencies are validated before dependents

	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}

	if err := v.validateModels(); err != nil {
		return fmt.Errorf("model validation failed: %w", err)
	}

	if err := v.validateCouncil(); err != nil {
		return fmt.Errorf("council validation failed: %w", err)
	}

	if err := v.validateStore(); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateProviders() error {
	for tag, provider := range v.cfg.Models.Providers {
		if !ProviderTag(tag).IsValid() {
			return NewValidationError("provider", tag, "", fmt.Errorf("unknown provider tag"))
		}

		if provider == nil || provider.APIKey == "" {
			return NewValidationError("provider", tag, "api_key", fmt.Errorf("api key required"))
		}
	}

	return nil
}

func (v *ConfigValidator) validateModels() error {
	if len(v.cfg.Models.Models) == 0 {
		return NewValidationError("model", "", "", fmt.Errorf("at least one model required"))
	}

	seen := make(map[string]bool, len(v.cfg.Models.Models))
	for _, m := range v.cfg.Models.Models {
		if m.ID == "" {
			return NewValidationError("model", m.ID, "id", fmt.Errorf("id required"))
		}
		if seen[m.ID] {
			return NewValidationError("model", m.ID, "id", fmt.Errorf("duplicate model id"))
		}
		seen[m.ID] = true

		// Validate provider reference
		if !m.Provider.IsValid() {
			return NewValidationError("model", m.ID, "provider", fmt.Errorf("invalid provider tag: %s", m.Provider))
		}
		if _, ok := v.cfg.Models.Provider(m.Provider); !ok {
			return NewValidationError("model", m.ID, "provider", fmt.Errorf("provider '%s' not configured", m.Provider))
		}
	}

	return nil
}

func (v *ConfigValidator) validateCouncil() error {
	c := v.cfg.Council

	// Validate chairman reference
	if c.ChairmanModelID == "" {
		return NewValidationError("council", "", "chairman_model_id", fmt.Errorf("chairman model required"))
	}
	if _, ok := v.cfg.Models.Model(c.ChairmanModelID); !ok {
		return NewValidationError("council", "", "chairman_model_id", fmt.Errorf("model '%s' not found", c.ChairmanModelID))
	}

	// Validate default councilor references
	for _, id := range c.DefaultModels {
		if _, ok := v.cfg.Models.Model(id); !ok {
			return NewValidationError("council", "", "default_models", fmt.Errorf("model '%s' not found", id))
		}
	}

	// Validate sampling parameters
	if c.Temperature < 0 || c.Temperature > 1 {
		return NewValidationError("council", "", "temperature", fmt.Errorf("must be between 0.0 and 1.0"))
	}
	if c.MaxTokens < 1 {
		return NewValidationError("council", "", "max_tokens", fmt.Errorf("must be at least 1"))
	}

	// Validate time limits
	if c.PerCallTimeout <= 0 {
		return NewValidationError("council", "", "per_call_timeout_ms", fmt.Errorf("must be positive"))
	}
	if c.Stage1Deadline <= 0 {
		return NewValidationError("council", "", "stage1_deadline_ms", fmt.Errorf("must be positive"))
	}
	if c.Stage2Deadline <= 0 {
		return NewValidationError("council", "", "stage2_deadline_ms", fmt.Errorf("must be positive"))
	}
	if c.Stage3Deadline <= 0 {
		return NewValidationError("council", "", "stage3_deadline_ms", fmt.Errorf("must be positive"))
	}
	if c.TurnDeadline <= 0 {
		return NewValidationError("council", "", "turn_deadline_ms", fmt.Errorf("must be positive"))
	}

	if c.OutputBufferSize < 1 {
		return NewValidationError("council", "", "output_buffer_size", fmt.Errorf("must be at least 1"))
	}

	return nil
}

func (v *ConfigValidator) validateStore() error {
	s := v.cfg.Store

	if !s.Backend.IsValid() {
		return NewValidationError("store", "", "backend", fmt.Errorf("invalid backend: %s", s.Backend))
	}
	if s.Backend == StoreRedis && s.RedisURL == "" {
		return NewValidationError("store", "", "redis_url", fmt.Errorf("required for redis backend"))
	}

	return nil
}
