package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/store"
)

// scriptedClient plays back a fixed chunk sequence for Stream calls and a
// fixed reply for Complete calls. Requests are recorded for assertions.
type scriptedClient struct {
	streamErr error       // Stream fails before any chunk
	chunks    []llm.Chunk // emitted in order
	hangAfter bool        // after the chunks, block until ctx ends
	linger    time.Duration

	reply        string // Complete response
	completeErr  error
	hangComplete bool

	mu               sync.Mutex
	streamRequests   []*llm.Request
	completeRequests []*llm.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req *llm.Request) (string, error) {
	c.mu.Lock()
	c.completeRequests = append(c.completeRequests, req)
	c.mu.Unlock()
	if c.hangComplete {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.completeErr != nil {
		return "", c.completeErr
	}
	return c.reply, nil
}

func (c *scriptedClient) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	c.mu.Lock()
	c.streamRequests = append(c.streamRequests, req)
	c.mu.Unlock()
	if c.streamErr != nil {
		return nil, c.streamErr
	}
	out := make(chan llm.Chunk, len(c.chunks)+1)
	go func() {
		defer close(out)
		for _, chunk := range c.chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				out <- &llm.ErrorChunk{Err: ctx.Err()}
				return
			}
		}
		if c.hangAfter {
			<-ctx.Done()
			if c.linger > 0 {
				time.Sleep(c.linger)
			}
			out <- &llm.ErrorChunk{Err: ctx.Err()}
		}
	}()
	return out, nil
}

func (c *scriptedClient) streamRequest(i int) *llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.streamRequests) {
		return nil
	}
	return c.streamRequests[i]
}

// fakeRegistry resolves a fixed roster against in-test clients.
type fakeRegistry struct {
	roster   []models.ModelDescriptor
	chairman models.ModelDescriptor
	clients  map[string]llm.Client
}

func (r *fakeRegistry) Resolve(ids []string) ([]models.ModelDescriptor, []string) {
	if len(ids) == 0 {
		return append([]models.ModelDescriptor(nil), r.roster...), nil
	}
	byID := make(map[string]models.ModelDescriptor, len(r.roster))
	for _, d := range r.roster {
		byID[d.ID] = d
	}
	var resolved []models.ModelDescriptor
	var unknown []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if d, ok := byID[id]; ok {
			resolved = append(resolved, d)
		} else {
			unknown = append(unknown, id)
		}
	}
	return resolved, unknown
}

func (r *fakeRegistry) Chairman() models.ModelDescriptor { return r.chairman }

func (r *fakeRegistry) ClientFor(d models.ModelDescriptor) (llm.Client, error) {
	client, ok := r.clients[d.ID]
	if !ok {
		return nil, fmt.Errorf("no client for %s", d.ID)
	}
	return client, nil
}

func descriptor(id string) models.ModelDescriptor {
	return models.ModelDescriptor{ID: id, DisplayName: id, ProviderTag: "test"}
}

func testCouncilConfig() *config.CouncilConfig {
	return &config.CouncilConfig{
		ChairmanModelID:  "chairman",
		Temperature:      0.7,
		MaxTokens:        1000,
		PerCallTimeout:   5 * time.Second,
		Stage1Deadline:   5 * time.Second,
		Stage2Deadline:   5 * time.Second,
		Stage3Deadline:   5 * time.Second,
		TurnDeadline:     10 * time.Second,
		OutputBufferSize: 64,
	}
}

// twoCouncilorRegistry wires councilors alpha and beta plus a separate
// chairman, all with well-behaved scripts.
func twoCouncilorRegistry() (*fakeRegistry, *scriptedClient, *scriptedClient, *scriptedClient) {
	alpha := &scriptedClient{
		chunks: []llm.Chunk{
			&llm.TextChunk{Text: "Paris "},
			&llm.TextChunk{Text: "is the capital."},
			&llm.UsageChunk{Input: 12, Output: 40, Total: 52},
		},
		reply: "Rank 1: Response B — concise",
	}
	beta := &scriptedClient{
		chunks: []llm.Chunk{&llm.TextChunk{Text: "It is Paris."}},
		reply:  "Rank 1: Response A — detailed",
	}
	chairman := &scriptedClient{
		chunks: []llm.Chunk{
			&llm.TextChunk{Text: "The capital of France "},
			&llm.TextChunk{Text: "is Paris."},
			&llm.UsageChunk{Input: 100, Output: 50, Total: 150},
		},
	}
	reg := &fakeRegistry{
		roster:   []models.ModelDescriptor{descriptor("alpha"), descriptor("beta")},
		chairman: descriptor("chairman"),
		clients:  map[string]llm.Client{"alpha": alpha, "beta": beta, "chairman": chairman},
	}
	return reg, alpha, beta, chairman
}

func drainEvents(t *testing.T, sess *Session) []events.Event {
	t.Helper()
	var out []events.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining session events")
		}
	}
}

// concatText joins the content of all events of the given type, optionally
// filtered by model id.
func concatText(evs []events.Event, eventType, modelID string) string {
	var b strings.Builder
	for _, ev := range evs {
		if ev.Type == eventType && (modelID == "" || ev.ModelID == modelID) {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

func eventsOfType(evs []events.Event, eventType string) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// assertStageOrdering checks that every event sits inside the phase its
// stage_update opened and that the stream ends with exactly one terminal.
func assertStageOrdering(t *testing.T, evs []events.Event) {
	t.Helper()
	stageAt := map[events.Stage]int{}
	for i, ev := range evs {
		if ev.Type == events.EventTypeStageUpdate {
			stageAt[ev.Stage] = i
		}
	}
	first, hasFirst := stageAt[events.StageFirstOpinions]
	reviewIdx, hasReview := stageAt[events.StageReview]
	finalIdx, hasFinal := stageAt[events.StageFinalResponse]
	require.True(t, hasFirst, "missing first_opinions stage update")
	require.True(t, hasReview, "missing review stage update")
	require.True(t, hasFinal, "missing final_response stage update")
	require.True(t, first < reviewIdx && reviewIdx < finalIdx, "stage updates out of order")

	for i, ev := range evs {
		switch ev.Type {
		case events.EventTypeModelResponse:
			assert.True(t, i > first && i < reviewIdx, "model_response outside stage 1 at index %d", i)
		case events.EventTypeReview:
			assert.True(t, i > reviewIdx && i < finalIdx, "review outside stage 2 at index %d", i)
		case events.EventTypeFinalResponse:
			assert.True(t, i > finalIdx && i < len(evs)-1, "final_response outside stage 3 at index %d", i)
		}
	}

	last := evs[len(evs)-1]
	assert.Contains(t, []string{events.EventTypeComplete, events.EventTypeError}, last.Type, "stream must end with a terminal event")
	for _, ev := range evs[:len(evs)-1] {
		assert.NotEqual(t, events.EventTypeComplete, ev.Type, "complete before end of stream")
	}
}

func TestRunFullTurn(t *testing.T) {
	reg, alpha, _, _ := twoCouncilorRegistry()
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "What is the capital of France?"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ConversationID())

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	assertStageOrdering(t, evs)
	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)

	// Streamed text matches what the turn recorded, model by model.
	assert.Equal(t, "Paris is the capital.", concatText(evs, events.EventTypeModelResponse, "alpha"))
	assert.Equal(t, "It is Paris.", concatText(evs, events.EventTypeModelResponse, "beta"))
	assert.Equal(t, "The capital of France is Paris.", concatText(evs, events.EventTypeFinalResponse, ""))

	reviews := eventsOfType(evs, events.EventTypeReview)
	require.Len(t, reviews, 2)
	for _, ev := range reviews {
		require.NotNil(t, ev.Data)
		assert.True(t, ev.Data.ParseOK)
		require.Len(t, ev.Data.Rankings, 1)
	}

	// Turn artifact.
	assert.NotEmpty(t, turn.TurnID)
	require.Len(t, turn.Opinions, 2)
	assert.Equal(t, "alpha", turn.Opinions[0].ModelID)
	assert.Equal(t, "Paris is the capital.", turn.Opinions[0].Text)
	require.NotNil(t, turn.Opinions[0].Usage)
	assert.Equal(t, 52, turn.Opinions[0].Usage.TotalTokens)
	assert.Equal(t, "beta", turn.Opinions[1].ModelID)
	require.Len(t, turn.Reviews, 2)
	assert.Equal(t, "The capital of France is Paris.", turn.FinalText)
	require.NotNil(t, turn.FinalUsage)
	assert.Equal(t, 150, turn.FinalUsage.TotalTokens)
	assert.False(t, turn.FinishedAt.Before(turn.StartedAt))

	// Persisted conversation.
	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "What is the capital of France?", conv.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "The capital of France is Paris.", conv.Messages[1].Content)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, turn.TurnID, conv.Turns[0].TurnID)

	// Request knobs forwarded to the provider call.
	req := alpha.streamRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, "alpha", req.Model)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Equal(t, 1000, req.MaxTokens)
}

func TestRunEmptyMessage(t *testing.T) {
	reg, _, _, _ := twoCouncilorRegistry()
	orch := New(reg, store.NewMemoryStore(), testCouncilConfig())

	_, err := orch.Run(context.Background(), Request{Message: "   \n\t "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRunNoCouncilors(t *testing.T) {
	reg := &fakeRegistry{chairman: descriptor("chairman"), clients: map[string]llm.Client{}}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	assert.Nil(t, turn)
	assert.ErrorIs(t, err, ErrNoCouncilors)

	require.Len(t, evs, 1)
	assert.Equal(t, events.EventTypeError, evs[0].Type)
	assert.Empty(t, evs[0].ModelID)
	assert.Equal(t, events.ReasonNoCouncilors, evs[0].Content)

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Empty(t, conv.Turns)
}

func TestRunUnknownModelsReported(t *testing.T) {
	reg, _, _, _ := twoCouncilorRegistry()
	orch := New(reg, store.NewMemoryStore(), testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{
		Message:        "hello",
		SelectedModels: []string{"alpha", "ghost-model"},
	})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	_, err = sess.Wait()
	require.NoError(t, err)

	var ghostErr *events.Event
	for i, ev := range evs {
		if ev.Type == events.EventTypeError && ev.ModelID == "ghost-model" {
			ghostErr = &evs[i]
			break
		}
	}
	require.NotNil(t, ghostErr, "expected an error event for the unknown model")
	assert.Equal(t, "unknown model", ghostErr.Content)

	// The turn still ran with the known councilor.
	assert.Equal(t, "Paris is the capital.", concatText(evs, events.EventTypeModelResponse, "alpha"))
	assert.Empty(t, concatText(evs, events.EventTypeModelResponse, "beta"))
	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)
}

func TestRunAllCouncilorsFail(t *testing.T) {
	reg := &fakeRegistry{
		roster:   []models.ModelDescriptor{descriptor("alpha"), descriptor("beta")},
		chairman: descriptor("chairman"),
		clients: map[string]llm.Client{
			"alpha":    &scriptedClient{streamErr: errors.New("upstream 500")},
			"beta":     &scriptedClient{streamErr: errors.New("connection reset")},
			"chairman": &scriptedClient{},
		},
	}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	assert.Nil(t, turn)
	assert.ErrorIs(t, err, ErrNoOpinions)

	errs := eventsOfType(evs, events.EventTypeError)
	require.Len(t, errs, 3)
	perModel := map[string]string{}
	for _, ev := range errs[:2] {
		perModel[ev.ModelID] = ev.Content
	}
	assert.Equal(t, "upstream 500", perModel["alpha"])
	assert.Equal(t, "connection reset", perModel["beta"])

	last := evs[len(evs)-1]
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Empty(t, last.ModelID)
	assert.Equal(t, events.ReasonNoOpinions, last.Content)

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestRunPartialCouncilorFailure(t *testing.T) {
	reg, _, _, _ := twoCouncilorRegistry()
	reg.clients["beta"] = &scriptedClient{streamErr: errors.New("rate limited")}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)

	// The failure is soft: one error event, no beta chunks, no beta review.
	errs := eventsOfType(evs, events.EventTypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "beta", errs[0].ModelID)
	assert.Equal(t, "rate limited", errs[0].Content)
	assert.Empty(t, concatText(evs, events.EventTypeModelResponse, "beta"))

	reviews := eventsOfType(evs, events.EventTypeReview)
	require.Len(t, reviews, 1)
	assert.Equal(t, "alpha", reviews[0].ModelID)

	// The errored opinion is part of the turn artifact, text cleared.
	require.Len(t, turn.Opinions, 2)
	assert.Equal(t, "rate limited", turn.Opinions[1].Err)
	assert.Empty(t, turn.Opinions[1].Text)
	assert.True(t, turn.Opinions[1].Errored())
}

func TestRunChairmanFailure(t *testing.T) {
	reg, _, _, _ := twoCouncilorRegistry()
	reg.clients["chairman"] = &scriptedClient{streamErr: errors.New("upstream 500")}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chairman synthesis failed")

	// The partial turn survives: opinions and reviews persisted, no final text.
	require.NotNil(t, turn)
	assert.Empty(t, turn.FinalText)
	assert.Len(t, turn.Opinions, 2)
	assert.Len(t, turn.Reviews, 2)

	last := evs[len(evs)-1]
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Equal(t, "chairman", last.ModelID)
	assert.Contains(t, last.Content, "chairman synthesis failed")

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	require.Len(t, conv.Turns, 1)
	assert.Empty(t, conv.Messages[1].Content)
}

func TestRunPersistenceFailure(t *testing.T) {
	reg, _, _, _ := twoCouncilorRegistry()
	st := &failingStore{MemoryStore: store.NewMemoryStore(), appendErr: errors.New("disk full")}
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	assert.Nil(t, turn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist turn")

	last := evs[len(evs)-1]
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Empty(t, last.ModelID)
	assert.Contains(t, last.Content, "persistence failed")
	assert.Contains(t, last.Content, "disk full")
}

// failingStore fails every append while delegating everything else.
type failingStore struct {
	*store.MemoryStore
	appendErr error
}

func (s *failingStore) AppendTurn(ctx context.Context, id string, userMsg models.ChatMessage, turn *models.CouncilTurn, assistantMsg models.ChatMessage) error {
	return s.appendErr
}

func TestSessionAbort(t *testing.T) {
	reg := &fakeRegistry{
		roster:   []models.ModelDescriptor{descriptor("alpha"), descriptor("beta")},
		chairman: descriptor("chairman"),
		clients: map[string]llm.Client{
			"alpha": &scriptedClient{
				chunks:    []llm.Chunk{&llm.TextChunk{Text: "thinking"}},
				hangAfter: true,
			},
			"beta":     &scriptedClient{hangAfter: true},
			"chairman": &scriptedClient{},
		},
	}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	// Wait for streaming to start, then sever.
	sawChunk := false
	timeout := time.After(5 * time.Second)
	for !sawChunk {
		select {
		case ev := <-sess.Events():
			if ev.Type == events.EventTypeModelResponse {
				sawChunk = true
			}
		case <-timeout:
			t.Fatal("no model_response before abort")
		}
	}
	sess.Abort()

	turn, err := sess.Wait()
	assert.Nil(t, turn)
	assert.ErrorIs(t, err, ErrAborted)

	// The stream ends without a terminal event.
	for ev := range sess.Events() {
		assert.NotEqual(t, events.EventTypeComplete, ev.Type)
		if ev.Type == events.EventTypeError {
			assert.NotEmpty(t, ev.ModelID, "no terminal error after abort")
		}
	}

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
	assert.Empty(t, conv.Turns)
}

func TestRunCallerCancelSeversSilently(t *testing.T) {
	reg := &fakeRegistry{
		roster:   []models.ModelDescriptor{descriptor("alpha")},
		chairman: descriptor("chairman"),
		clients: map[string]llm.Client{
			"alpha": &scriptedClient{
				chunks:    []llm.Chunk{&llm.TextChunk{Text: "partial"}},
				hangAfter: true,
			},
			"chairman": &scriptedClient{},
		},
	}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := orch.Run(ctx, Request{Message: "hello"})
	require.NoError(t, err)

	timeout := time.After(5 * time.Second)
	for sawChunk := false; !sawChunk; {
		select {
		case ev := <-sess.Events():
			if ev.Type == events.EventTypeModelResponse {
				sawChunk = true
			}
		case <-timeout:
			t.Fatal("no model_response before cancel")
		}
	}
	cancel()

	turn, err := sess.Wait()
	assert.Nil(t, turn)
	assert.ErrorIs(t, err, context.Canceled)

	for ev := range sess.Events() {
		assert.NotEqual(t, events.EventTypeComplete, ev.Type)
	}

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	assert.Empty(t, conv.Turns)
}

func TestRunTurnDeadline(t *testing.T) {
	cfg := testCouncilConfig()
	cfg.TurnDeadline = 250 * time.Millisecond

	reg := &fakeRegistry{
		roster:   []models.ModelDescriptor{descriptor("alpha"), descriptor("beta")},
		chairman: descriptor("chairman"),
		clients: map[string]llm.Client{
			"alpha":    &scriptedClient{chunks: []llm.Chunk{&llm.TextChunk{Text: "quick answer"}}},
			"beta":     &scriptedClient{hangAfter: true},
			"chairman": &scriptedClient{},
		},
	}
	st := store.NewMemoryStore()
	orch := New(reg, st, cfg)

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	assert.ErrorIs(t, err, ErrTurnTimeout)

	last := evs[len(evs)-1]
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Empty(t, last.ModelID)
	assert.Equal(t, events.ReasonTurnTimeout, last.Content)

	// One opinion survived, so the partial turn was persisted.
	require.NotNil(t, turn)
	require.Len(t, turn.Opinions, 2)
	assert.Equal(t, "quick answer", turn.Opinions[0].Text)
	assert.Equal(t, reasonTimeout, turn.Opinions[1].Err)
	assert.Empty(t, turn.FinalText)

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, turn.TurnID, conv.Turns[0].TurnID)
	require.Len(t, conv.Messages, 2)
	assert.Empty(t, conv.Messages[1].Content)
}

func TestRunSyncMultiTurnHistory(t *testing.T) {
	reg, alpha, _, _ := twoCouncilorRegistry()
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	first, err := orch.RunSync(context.Background(), Request{Message: "What is the capital of France?"})
	require.NoError(t, err)
	require.NotNil(t, first)

	convs, err := st.List(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	convID := convs[0].ID

	second, err := orch.RunSync(context.Background(), Request{
		ConversationID: convID,
		Message:        "And its population?",
	})
	require.NoError(t, err)
	require.NotNil(t, second)

	conv, err := st.Load(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, "And its population?", conv.Messages[2].Content)

	// The second stage-1 call carries the first turn as history.
	req := alpha.streamRequest(1)
	require.NotNil(t, req)
	var sawPriorAnswer, sawPriorQuestion bool
	for _, m := range req.Messages {
		if m.Content == "The capital of France is Paris." {
			sawPriorAnswer = true
		}
		if m.Content == "What is the capital of France?" {
			sawPriorQuestion = true
		}
	}
	assert.True(t, sawPriorQuestion, "prior user message missing from history")
	assert.True(t, sawPriorAnswer, "prior assistant message missing from history")
}

func TestRunResumesUnknownConversationID(t *testing.T) {
	reg, _, _, _ := twoCouncilorRegistry()
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	turn, err := orch.RunSync(context.Background(), Request{
		ConversationID: "caller-chosen-id",
		Message:        "hello",
	})
	require.NoError(t, err)
	require.NotNil(t, turn)

	conv, err := st.Load(context.Background(), "caller-chosen-id")
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 1)
}
