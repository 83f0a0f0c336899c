package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/models"
)

// Registry maps model ids to descriptors and provider-backed clients.
// Contents are fixed at construction; reads are thread-safe.
type Registry struct {
	mu          sync.RWMutex
	descriptors []models.ModelDescriptor
	byID        map[string]models.ModelDescriptor
	clients     map[config.ProviderTag]Client
	chairmanID  string
	defaultIDs  []string
}

// NewRegistry builds the model roster from configuration, one client per
// configured provider. The roster keeps configuration order. Construction
// fails on duplicate model ids, on models whose provider has no
// configuration, and when the chairman is missing from the roster.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		byID:       make(map[string]models.ModelDescriptor, len(cfg.Models.Models)),
		clients:    make(map[config.ProviderTag]Client, len(cfg.Models.Providers)),
		chairmanID: cfg.Council.ChairmanModelID,
		defaultIDs: append([]string(nil), cfg.Council.DefaultModels...),
	}

	for tag, providerCfg := range cfg.Models.Providers {
		client, err := newProviderClient(config.ProviderTag(tag), providerCfg, cfg.Council.PerCallTimeout)
		if err != nil {
			return nil, err
		}
		r.clients[config.ProviderTag(tag)] = client
	}

	for _, mc := range cfg.Models.Models {
		if _, dup := r.byID[mc.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", mc.ID)
		}
		if _, ok := r.clients[mc.Provider]; !ok {
			return nil, fmt.Errorf("model %q: %w: %s", mc.ID, ErrProviderNotConfigured, mc.Provider)
		}
		d := models.ModelDescriptor{
			ID:          mc.ID,
			DisplayName: mc.DisplayName,
			ProviderTag: string(mc.Provider),
			IsChairman:  mc.ID == r.chairmanID,
		}
		r.descriptors = append(r.descriptors, d)
		r.byID[d.ID] = d
	}

	if _, ok := r.byID[r.chairmanID]; !ok {
		return nil, fmt.Errorf("chairman model %q: %w", r.chairmanID, ErrModelNotFound)
	}
	return r, nil
}

func newProviderClient(tag config.ProviderTag, cfg *config.ProviderConfig, timeout time.Duration) (Client, error) {
	switch tag {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, timeout), nil
	case config.ProviderOpenRouter:
		return NewOpenRouterClient(cfg, timeout), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, timeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider tag %q", ErrProviderNotConfigured, tag)
	}
}

// ListAll returns every descriptor in configuration order (thread-safe,
// returns a copy).
func (r *Registry) ListAll() []models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ModelDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Resolve maps requested ids to descriptors, preserving request order.
// Unknown ids are collected rather than failing the call, so the caller
// can surface them as warnings. Empty input resolves to the configured
// default council.
func (r *Registry) Resolve(ids []string) (resolved []models.ModelDescriptor, unknown []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(ids) == 0 {
		ids = r.defaultIDs
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if d, ok := r.byID[id]; ok {
			resolved = append(resolved, d)
		} else {
			unknown = append(unknown, id)
		}
	}
	return resolved, unknown
}

// Get retrieves one descriptor by model id.
func (r *Registry) Get(id string) (models.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return d, nil
}

// Chairman returns the synthesis model's descriptor. The chairman is
// validated into the roster at construction.
func (r *Registry) Chairman() models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[r.chairmanID]
}

// ClientFor returns the provider client serving the descriptor.
func (r *Registry) ClientFor(d models.ModelDescriptor) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[config.ProviderTag(d.ProviderTag)]
	if !ok {
		return nil, fmt.Errorf("model %q: %w: %s", d.ID, ErrProviderNotConfigured, d.ProviderTag)
	}
	return client, nil
}
