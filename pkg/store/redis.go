package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/synod-ai/synod/pkg/models"
)

const (
	conversationKeyPrefix = "synod:conversation:"
	conversationIndexKey  = "synod:conversations"

	// appendRetries bounds optimistic-lock retries when concurrent appends
	// collide on the same conversation key.
	appendRetries = 5
)

// RedisStore persists each conversation as one JSON blob, with a set as the
// listing index.
type RedisStore struct {
	client *redis.Client
}

var _ ConversationStore = (*RedisStore)(nil)

// NewRedisStore connects to the given URL (redis://host:port/db) and pings
// the server before returning.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client (useful for testing).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func conversationKey(id string) string {
	return conversationKeyPrefix + id
}

// Load reads and decodes one conversation blob.
func (s *RedisStore) Load(ctx context.Context, id string) (*models.Conversation, error) {
	raw, err := s.client.Get(ctx, conversationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	var conv models.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Create stores an empty conversation under the id. SETNX keeps a
// concurrent create from clobbering an existing blob; when the key is
// already present the stored conversation is returned.
func (s *RedisStore) Create(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	conv := &models.Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	raw, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation %s: %w", id, err)
	}

	created, err := s.client.SetNX(ctx, conversationKey(id), raw, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation %s: %w", id, err)
	}
	if !created {
		return s.Load(ctx, id)
	}
	if err := s.client.SAdd(ctx, conversationIndexKey, id).Err(); err != nil {
		return nil, fmt.Errorf("failed to index conversation %s: %w", id, err)
	}
	return conv, nil
}

// AppendTurn runs a WATCH-based optimistic transaction: read the blob,
// append in memory, write back only if the key was untouched. Collisions
// with concurrent appends retry.
func (s *RedisStore) AppendTurn(ctx context.Context, id string, userMsg models.ChatMessage, turn *models.CouncilTurn, assistantMsg models.ChatMessage) error {
	key := conversationKey(id)

	update := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation %s: %w", id, err)
		}
		var conv models.Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			return fmt.Errorf("failed to decode conversation %s: %w", id, err)
		}

		conv.Messages = append(conv.Messages, userMsg, assistantMsg)
		conv.Turns = append(conv.Turns, turn)
		conv.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(&conv)
		if err != nil {
			return fmt.Errorf("failed to encode conversation %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < appendRetries; attempt++ {
		err := s.client.Watch(ctx, update, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to append turn to %s: too many concurrent writes", id)
}

// Delete removes the blob and its index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, conversationKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.client.SRem(ctx, conversationIndexKey, id).Err(); err != nil {
		return fmt.Errorf("failed to unindex conversation %s: %w", id, err)
	}
	return nil
}

// List loads every indexed conversation, most recently updated first.
// Entries deleted between the index read and the blob read are skipped.
func (s *RedisStore) List(ctx context.Context) ([]*models.Conversation, error) {
	ids, err := s.client.SMembers(ctx, conversationIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	out := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	sortConversations(out)
	return out, nil
}
