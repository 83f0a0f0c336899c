package llm

import "errors"

var (
	// ErrModelNotFound indicates a model id that is not in the roster.
	ErrModelNotFound = errors.New("model not found")

	// ErrProviderNotConfigured indicates a model whose provider has no
	// usable configuration.
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrEmptyResponse indicates a provider reply with no content.
	ErrEmptyResponse = errors.New("empty response from model")
)
