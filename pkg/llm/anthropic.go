package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/synod-ai/synod/pkg/config"
)

// anthropicDefaultMaxTokens fills in requests that omit a cap; the
// Messages API requires max_tokens on every call.
const anthropicDefaultMaxTokens = 4096

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client  sdk.Client
	timeout time.Duration
}

// NewAnthropicClient builds an adapter for the Anthropic API.
func NewAnthropicClient(cfg *config.ProviderConfig, timeout time.Duration) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{client: sdk.NewClient(opts...), timeout: timeout}
}

// Complete issues a non-streaming Messages call and returns the
// concatenated text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (string, error) {
	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, messageParams(req))
	if err != nil {
		return "", fmt.Errorf("anthropic messages.new: %w", err)
	}
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

// Stream issues a streaming Messages call. The returned channel carries
// text deltas and a final usage chunk; it is closed when the stream ends.
func (c *AnthropicClient) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	ctx, cancel := callContext(ctx, c.timeout)

	stream := c.client.Messages.NewStreaming(ctx, messageParams(req))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		cancel()
		return nil, fmt.Errorf("anthropic messages stream: %w", err)
	}

	chunks := make(chan Chunk, streamBuffer)
	go func() {
		defer cancel()
		defer close(chunks)
		defer func() { _ = stream.Close() }()

		var inputTokens, outputTokens int64
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case sdk.MessageStartEvent:
				inputTokens = ev.Message.Usage.InputTokens
			case sdk.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
					if !trySend(ctx, chunks, &TextChunk{Text: delta.Text}) {
						return
					}
				}
			case sdk.MessageDeltaEvent:
				outputTokens = ev.Usage.OutputTokens
				if ev.Usage.InputTokens > 0 {
					inputTokens = ev.Usage.InputTokens
				}
			case sdk.MessageStopEvent:
				usage := &UsageChunk{
					Input:  int(inputTokens),
					Output: int(outputTokens),
					Total:  int(inputTokens + outputTokens),
				}
				if !trySend(ctx, chunks, usage) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			sendTerminal(ctx, chunks, &ErrorChunk{Err: fmt.Errorf("anthropic messages stream: %w", err)})
		}
	}()

	return chunks, nil
}

func messageParams(req *Request) sdk.MessageNewParams {
	conversation := make([]sdk.MessageParam, 0, len(req.Messages))
	system := make([]sdk.TextBlockParam, 0, 1)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	params := sdk.MessageNewParams{
		MaxTokens:   int64(maxTokens),
		Messages:    conversation,
		Model:       sdk.Model(req.Model),
		Temperature: sdk.Float(req.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	return params
}
