// Package llm provides the provider clients behind the council: a model
// registry, a capability interface for chat calls, and the streaming chunk
// types shared by all adapters.
//
// Stream channels follow one contract: the adapter owns the channel and
// closes it when the stream ends for any reason. Failures after the stream
// opens are delivered as a terminal ErrorChunk before close. Consumers
// should drain the channel until it closes.
package llm

import (
	"context"
	"time"
)

// Message roles accepted by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation sent to a model.
type Message struct {
	Role    string
	Content string
}

// Request carries the inputs for a single chat call.
type Request struct {
	// Model is the provider-side model identifier.
	Model string

	// Messages is the full conversation to send, system prompt included.
	Messages []Message

	// Temperature is forwarded on every call (0.0-1.0).
	Temperature float64

	// MaxTokens caps the response length. Zero means provider default.
	MaxTokens int
}

// Client is the capability interface implemented by each provider adapter.
//
// Both operations honor ctx cancellation and enforce the configured
// per-call timeout when the caller has not set a sooner deadline.
// Stream returns an error only when the request cannot be started;
// failures after that arrive as an ErrorChunk followed by channel close.
type Client interface {
	// Complete sends the conversation and returns the full response text.
	Complete(ctx context.Context, req *Request) (string, error)

	// Stream sends the conversation and returns a channel of chunks.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// ChunkType discriminates streaming chunk variants.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// Chunk is a single unit of streamed model output.
type Chunk interface {
	chunkType() ChunkType
}

// TextChunk is an incremental piece of the model's response text.
type TextChunk struct {
	Text string
}

// UsageChunk reports token accounting, sent once near the end of a stream
// when the provider includes usage data.
type UsageChunk struct {
	Input  int
	Output int
	Total  int
}

// ErrorChunk reports a failure after the stream opened. It is terminal:
// the channel closes after it is delivered.
type ErrorChunk struct {
	Err error
}

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// streamBuffer is the capacity of channels returned by Stream.
const streamBuffer = 32

// callContext applies the per-call timeout unless the caller's deadline
// is already sooner.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// trySend delivers a chunk unless ctx is done first.
func trySend(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendTerminal delivers the final chunk of a stream. The buffered send is
// tried first so that an already-expired ctx cannot race away the terminal
// error; it gives up only when the buffer is full and the consumer is gone.
func sendTerminal(ctx context.Context, ch chan<- Chunk, c Chunk) {
	select {
	case ch <- c:
	default:
		select {
		case ch <- c:
		case <-ctx.Done():
		}
	}
}
