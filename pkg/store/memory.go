package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synod-ai/synod/pkg/models"
)

// MemoryStore keeps conversations in a process-local map. It is the default
// store for the CLI and the test harness.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
}

var _ ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*models.Conversation),
	}
}

// Load returns a copy of the conversation so callers can read it without
// holding the store lock.
func (s *MemoryStore) Load(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneConversation(conv), nil
}

// Create registers a new conversation. An existing id returns the stored
// conversation unchanged.
func (s *MemoryStore) Create(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.conversations[id]; ok {
		return cloneConversation(existing), nil
	}
	now := time.Now().UTC()
	conv := &models.Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	s.conversations[id] = conv
	return cloneConversation(conv), nil
}

// AppendTurn appends the message pair and the turn artifact under the store
// lock, so concurrent appends to the same conversation serialize.
func (s *MemoryStore) AppendTurn(ctx context.Context, id string, userMsg models.ChatMessage, turn *models.CouncilTurn, assistantMsg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	turnCopy := *turn
	conv.Messages = append(conv.Messages, userMsg, assistantMsg)
	conv.Turns = append(conv.Turns, &turnCopy)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the conversation.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.conversations, id)
	return nil
}

// List returns copies of every conversation, most recently updated first.
func (s *MemoryStore) List(ctx context.Context) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		out = append(out, cloneConversation(conv))
	}
	sortConversations(out)
	return out, nil
}

// sortConversations orders by UpdatedAt descending, ties by id, so listings
// are stable.
func sortConversations(convs []*models.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID < convs[j].ID
	})
}

// cloneConversation copies a conversation so callers never alias the stored
// slices. Turn artifacts are immutable once appended, so the turn structs
// are copied shallowly.
func cloneConversation(conv *models.Conversation) *models.Conversation {
	out := &models.Conversation{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
	if len(conv.Messages) > 0 {
		out.Messages = make([]models.ChatMessage, len(conv.Messages))
		copy(out.Messages, conv.Messages)
	}
	if len(conv.Turns) > 0 {
		out.Turns = make([]*models.CouncilTurn, 0, len(conv.Turns))
		for _, t := range conv.Turns {
			turnCopy := *t
			out.Turns = append(out.Turns, &turnCopy)
		}
	}
	return out
}
