package e2e

import (
	"context"
	"fmt"
	"sync"

	"github.com/synod-ai/synod/pkg/llm"
)

// ScriptEntry defines a single scripted model response.
type ScriptEntry struct {
	// Response content (exactly one of Chunks/Text/Error should be set)
	Chunks []llm.Chunk // pre-built chunks to stream
	Text   string      // shorthand: one TextChunk plus a UsageChunk
	Error  error       // fail the call before any output

	// Test control
	BlockUntilCancelled bool            // after Chunks, hold the call open until ctx is cancelled
	OnBlock             chan<- struct{} // notified when the call enters its blocking path
	OnCancel            chan<- struct{} // notified when a blocked call observes cancellation
}

// ScriptedModelClient implements llm.Client with per-model routing: every
// model id consumes its own entry list in call order. Stream and Complete
// draw from separate scripts, since one councilor answers in stage 1 and
// reviews in stage 2.
type ScriptedModelClient struct {
	mu              sync.Mutex
	streamScripts   map[string][]ScriptEntry
	streamIndex     map[string]int
	completeScripts map[string][]ScriptEntry
	completeIndex   map[string]int
	streamCalls     map[string][]*llm.Request
	completeCalls   map[string][]*llm.Request
}

// NewScriptedModelClient creates an empty scripted client.
func NewScriptedModelClient() *ScriptedModelClient {
	return &ScriptedModelClient{
		streamScripts:   make(map[string][]ScriptEntry),
		streamIndex:     make(map[string]int),
		completeScripts: make(map[string][]ScriptEntry),
		completeIndex:   make(map[string]int),
		streamCalls:     make(map[string][]*llm.Request),
		completeCalls:   make(map[string][]*llm.Request),
	}
}

// OnStream appends a scripted response for the model's next Stream call.
func (c *ScriptedModelClient) OnStream(modelID string, entry ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamScripts[modelID] = append(c.streamScripts[modelID], entry)
}

// OnComplete appends a scripted response for the model's next Complete call.
func (c *ScriptedModelClient) OnComplete(modelID string, entry ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completeScripts[modelID] = append(c.completeScripts[modelID], entry)
}

// Stream implements llm.Client.
func (c *ScriptedModelClient) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	c.mu.Lock()
	c.streamCalls[req.Model] = append(c.streamCalls[req.Model], req)
	entry, err := nextEntry(c.streamScripts, c.streamIndex, req.Model, "stream")
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if entry.Error != nil {
		return nil, entry.Error
	}

	chunks := entry.Chunks
	if len(chunks) == 0 && entry.Text != "" {
		chunks = []llm.Chunk{
			&llm.TextChunk{Text: entry.Text},
			&llm.UsageChunk{Input: 10, Output: 5, Total: 15},
		}
	}

	ch := make(chan llm.Chunk, len(chunks)+1)
	if !entry.BlockUntilCancelled {
		for _, chunk := range chunks {
			ch <- chunk
		}
		close(ch)
		return ch, nil
	}

	go func() {
		defer close(ch)
		for _, chunk := range chunks {
			ch <- chunk
		}
		if entry.OnBlock != nil {
			entry.OnBlock <- struct{}{}
		}
		<-ctx.Done()
		if entry.OnCancel != nil {
			entry.OnCancel <- struct{}{}
		}
		ch <- &llm.ErrorChunk{Err: ctx.Err()}
	}()
	return ch, nil
}

// Complete implements llm.Client.
func (c *ScriptedModelClient) Complete(ctx context.Context, req *llm.Request) (string, error) {
	c.mu.Lock()
	c.completeCalls[req.Model] = append(c.completeCalls[req.Model], req)
	entry, err := nextEntry(c.completeScripts, c.completeIndex, req.Model, "complete")
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	if entry.BlockUntilCancelled {
		if entry.OnBlock != nil {
			entry.OnBlock <- struct{}{}
		}
		<-ctx.Done()
		if entry.OnCancel != nil {
			entry.OnCancel <- struct{}{}
		}
		return "", ctx.Err()
	}
	if entry.Error != nil {
		return "", entry.Error
	}
	return entry.Text, nil
}

// StreamCalls returns how many Stream calls the model received.
func (c *ScriptedModelClient) StreamCalls(modelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streamCalls[modelID])
}

// CompleteCalls returns how many Complete calls the model received.
func (c *ScriptedModelClient) CompleteCalls(modelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completeCalls[modelID])
}

// StreamRequest returns the model's i-th captured Stream request, or nil.
func (c *ScriptedModelClient) StreamRequest(modelID string, i int) *llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := c.streamCalls[modelID]
	if i >= len(calls) {
		return nil
	}
	return calls[i]
}

// CompleteRequest returns the model's i-th captured Complete request, or nil.
func (c *ScriptedModelClient) CompleteRequest(modelID string, i int) *llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := c.completeCalls[modelID]
	if i >= len(calls) {
		return nil
	}
	return calls[i]
}

// nextEntry pops the model's next script entry. Must be called with the
// client lock held.
func nextEntry(scripts map[string][]ScriptEntry, index map[string]int, modelID, kind string) (*ScriptEntry, error) {
	entries, ok := scripts[modelID]
	idx := index[modelID]
	if !ok || idx >= len(entries) {
		return nil, fmt.Errorf("ScriptedModelClient: no %s entry for model %q (call %d)", kind, modelID, idx+1)
	}
	index[modelID] = idx + 1
	return &entries[idx], nil
}
