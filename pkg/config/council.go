package config

import "time"

// CouncilYAMLConfig holds council settings as written in synod.yaml.
// Time limits are integer milliseconds on the wire.
type CouncilYAMLConfig struct {
	// ChairmanModelID is the model that synthesizes the final response (required).
	ChairmanModelID string `yaml:"chairman_model_id"`

	// DefaultModels are the councilors used when a request selects none.
	DefaultModels []string `yaml:"default_models"`

	// Temperature forwarded to every model call (0.0-1.0).
	// Pointer so an explicit 0.0 survives the defaults merge.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens caps each model response.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// PerCallTimeoutMS bounds every individual model call.
	PerCallTimeoutMS int `yaml:"per_call_timeout_ms,omitempty"`

	// Stage deadlines bound the parallel opinion, review, and synthesis phases.
	Stage1DeadlineMS int `yaml:"stage1_deadline_ms,omitempty"`
	Stage2DeadlineMS int `yaml:"stage2_deadline_ms,omitempty"`
	Stage3DeadlineMS int `yaml:"stage3_deadline_ms,omitempty"`

	// TurnDeadlineMS bounds the whole turn end to end.
	TurnDeadlineMS int `yaml:"turn_deadline_ms,omitempty"`

	// OutputBufferSize is the event stream buffer capacity.
	OutputBufferSize int `yaml:"output_buffer_size,omitempty"`
}

// DefaultCouncilYAML returns the built-in council defaults.
func DefaultCouncilYAML() *CouncilYAMLConfig {
	temperature := 0.7
	return &CouncilYAMLConfig{
		Temperature:      &temperature,
		MaxTokens:        4000,
		PerCallTimeoutMS: 120000,
		Stage1DeadlineMS: 180000,
		Stage2DeadlineMS: 120000,
		Stage3DeadlineMS: 180000,
		TurnDeadlineMS:   600000,
		OutputBufferSize: 128,
	}
}

// CouncilConfig is the resolved council configuration used at runtime.
type CouncilConfig struct {
	ChairmanModelID string
	DefaultModels   []string

	Temperature float64
	MaxTokens   int

	PerCallTimeout time.Duration
	Stage1Deadline time.Duration
	Stage2Deadline time.Duration
	Stage3Deadline time.Duration
	TurnDeadline   time.Duration

	OutputBufferSize int
}

// resolveCouncilConfig converts merged YAML values into runtime form.
func resolveCouncilConfig(y *CouncilYAMLConfig) *CouncilConfig {
	cfg := &CouncilConfig{
		ChairmanModelID:  y.ChairmanModelID,
		DefaultModels:    y.DefaultModels,
		MaxTokens:        y.MaxTokens,
		PerCallTimeout:   time.Duration(y.PerCallTimeoutMS) * time.Millisecond,
		Stage1Deadline:   time.Duration(y.Stage1DeadlineMS) * time.Millisecond,
		Stage2Deadline:   time.Duration(y.Stage2DeadlineMS) * time.Millisecond,
		Stage3Deadline:   time.Duration(y.Stage3DeadlineMS) * time.Millisecond,
		TurnDeadline:     time.Duration(y.TurnDeadlineMS) * time.Millisecond,
		OutputBufferSize: y.OutputBufferSize,
	}
	if y.Temperature != nil {
		cfg.Temperature = *y.Temperature
	}
	return cfg
}
