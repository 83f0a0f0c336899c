// Package models contains the council's business domain types.
package models

// ModelDescriptor identifies one council model and its provider binding.
// Descriptors are built from static configuration at process start and
// never mutated afterwards. Exactly one descriptor per registry has
// IsChairman set.
type ModelDescriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ProviderTag string `json:"provider_tag"`
	IsChairman  bool   `json:"is_chairman"`
}
