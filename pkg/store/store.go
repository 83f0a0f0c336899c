// Package store persists conversations across council turns.
//
// Three implementations share one contract: an in-memory map for tests and
// the default CLI mode, PostgreSQL for durable deployments, and Redis for
// shared ephemeral deployments. Every implementation appends a finished
// turn atomically, so concurrent turns on the same conversation never
// interleave their message pairs.
package store

import (
	"context"
	"errors"

	"github.com/synod-ai/synod/pkg/models"
)

// ErrNotFound indicates the conversation id is unknown to the store.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore is the persistence capability used by the orchestrator
// and the CLI.
//
// Load returns ErrNotFound for unknown ids. Create mints a fresh uuid when
// id is empty; a caller-supplied id creates the conversation under that id,
// and an id that already exists returns the stored conversation unchanged.
// AppendTurn appends the user message, the finished turn and the assistant
// message in one atomic step and bumps UpdatedAt.
type ConversationStore interface {
	Load(ctx context.Context, id string) (*models.Conversation, error)
	Create(ctx context.Context, id string) (*models.Conversation, error)
	AppendTurn(ctx context.Context, id string, userMsg models.ChatMessage, turn *models.CouncilTurn, assistantMsg models.ChatMessage) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Conversation, error)
}
