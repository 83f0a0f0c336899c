package config

// ProviderTag identifies which API adapter serves a model.
type ProviderTag string

const (
	// ProviderOpenAI is the OpenAI Chat Completions API.
	ProviderOpenAI ProviderTag = "openai"

	// ProviderAnthropic is the Anthropic Messages API.
	ProviderAnthropic ProviderTag = "anthropic"

	// ProviderOpenRouter is OpenRouter's OpenAI-compatible API.
	ProviderOpenRouter ProviderTag = "openrouter"
)

// IsValid checks if the provider tag is supported
func (t ProviderTag) IsValid() bool {
	switch t {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter:
		return true
	}
	return false
}

// ProviderConfig defines connection settings for one provider
type ProviderConfig struct {
	// API key (required; typically injected via {{.VAR}} expansion)
	APIKey string `yaml:"api_key"`

	// Optional custom endpoint/base URL
	BaseURL string `yaml:"base_url,omitempty"`

	// App attribution headers sent to OpenRouter (HTTP-Referer / X-Title)
	Referer string `yaml:"referer,omitempty"`
	Title   string `yaml:"title,omitempty"`
}

// ModelConfig defines one entry in the model roster
type ModelConfig struct {
	// Model identifier sent to the provider (required)
	ID string `yaml:"id"`

	// Human-readable name shown in listings (defaults to ID)
	DisplayName string `yaml:"display_name,omitempty"`

	// Provider tag this model is served by (required)
	Provider ProviderTag `yaml:"provider"`
}

// ModelsConfig holds provider credentials and the model roster,
// in the order declared in models.yaml.
type ModelsConfig struct {
	Providers map[string]*ProviderConfig
	Models    []ModelConfig
}

// Provider retrieves a provider configuration by tag.
func (m *ModelsConfig) Provider(tag ProviderTag) (*ProviderConfig, bool) {
	p, ok := m.Providers[string(tag)]
	return p, ok
}

// Model retrieves a roster entry by model id.
func (m *ModelsConfig) Model(id string) (*ModelConfig, bool) {
	for i := range m.Models {
		if m.Models[i].ID == id {
			return &m.Models[i], true
		}
	}
	return nil, false
}

// ModelIDs returns all roster ids in declaration order.
func (m *ModelsConfig) ModelIDs() []string {
	ids := make([]string, 0, len(m.Models))
	for _, mc := range m.Models {
		ids = append(ids, mc.ID)
	}
	return ids
}
