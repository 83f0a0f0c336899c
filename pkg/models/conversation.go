package models

import "time"

// Roles of persisted conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one persisted message of a conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the append-only record of messages and council turns.
// Once a turn completes, Messages holds one user and one assistant entry
// per turn, in order.
type Conversation struct {
	ID        string         `json:"id"`
	Messages  []ChatMessage  `json:"messages"`
	Turns     []*CouncilTurn `json:"turns"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
