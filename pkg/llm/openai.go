package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/synod-ai/synod/pkg/config"
)

// openRouterBaseURL is the OpenAI-compatible endpoint OpenRouter exposes.
const openRouterBaseURL = "https://openrouter.ai/api/v1"

// openAIMaxRetries bounds SDK-level retries; the per-call timeout caps the
// total time regardless.
const openAIMaxRetries = 3

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// It backs both the openai and openrouter provider tags.
type OpenAIClient struct {
	client  openai.Client
	timeout time.Duration
}

// NewOpenAIClient builds an adapter for the OpenAI API. A base URL in the
// provider config points it at any wire-compatible endpoint.
func NewOpenAIClient(cfg *config.ProviderConfig, timeout time.Duration) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(openAIMaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), timeout: timeout}
}

// NewOpenRouterClient builds an adapter for OpenRouter: the OpenAI wire
// format under a fixed base URL, plus optional app attribution headers.
func NewOpenRouterClient(cfg *config.ProviderConfig, timeout time.Duration) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(openAIMaxRetries),
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}
	return &OpenAIClient{client: openai.NewClient(opts...), timeout: timeout}
}

// Complete issues a non-streaming chat completion and returns the full
// response text.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (string, error) {
	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, chatParams(req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream issues a streaming chat completion. The returned channel carries
// text deltas and a final usage chunk; it is closed when the stream ends.
func (c *OpenAIClient) Stream(ctx context.Context, req *Request) (<-chan Chunk, error) {
	ctx, cancel := callContext(ctx, c.timeout)

	params := chatParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		cancel()
		return nil, fmt.Errorf("chat completion stream: %w", err)
	}

	chunks := make(chan Chunk, streamBuffer)
	go func() {
		defer cancel()
		defer close(chunks)
		defer func() { _ = stream.Close() }()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					if !trySend(ctx, chunks, &TextChunk{Text: delta}) {
						return
					}
				}
			}
			// Usage arrives on the last chunk when include_usage is set.
			if chunk.Usage.TotalTokens > 0 {
				usage := &UsageChunk{
					Input:  int(chunk.Usage.PromptTokens),
					Output: int(chunk.Usage.CompletionTokens),
					Total:  int(chunk.Usage.TotalTokens),
				}
				if !trySend(ctx, chunks, usage) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			sendTerminal(ctx, chunks, &ErrorChunk{Err: fmt.Errorf("chat completion stream: %w", err)})
		}
	}()

	return chunks, nil
}

func chatParams(req *Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}
