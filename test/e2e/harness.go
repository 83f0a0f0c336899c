// Package e2e exercises the council pipeline end to end: scripted model
// clients drive the orchestrator through real prompt building, review
// parsing, event streaming and conversation persistence, with only the
// provider HTTP layer replaced.
package e2e

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/council"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/store"
)

const collectTimeout = 10 * time.Second

// TestCouncil bundles a fully wired orchestrator with its scripted model
// client and in-memory store.
type TestCouncil struct {
	t *testing.T

	Client       *ScriptedModelClient
	Store        *store.MemoryStore
	Config       *config.CouncilConfig
	Orchestrator *council.Orchestrator
}

type councilSetup struct {
	roster   []string
	defaults []string
	mutate   []func(*config.CouncilConfig)
}

// Option customizes the test council.
type Option func(*councilSetup)

// WithRoster sets the available councilor model ids (the chairman is
// always available on top).
func WithRoster(ids ...string) Option {
	return func(s *councilSetup) { s.roster = ids }
}

// WithDefaultModels sets the councilors used when a request selects none.
func WithDefaultModels(ids ...string) Option {
	return func(s *councilSetup) { s.defaults = ids }
}

// WithCouncilConfig applies an edit to the council config before wiring.
func WithCouncilConfig(mutate func(*config.CouncilConfig)) Option {
	return func(s *councilSetup) { s.mutate = append(s.mutate, mutate) }
}

// NewTestCouncil wires an orchestrator around a scripted client and a
// fresh in-memory store. Defaults: councilors m1, m2, m3 and chairman
// "chairman", with tight deadlines suited to scripted responses.
func NewTestCouncil(t *testing.T, opts ...Option) *TestCouncil {
	t.Helper()

	setup := &councilSetup{roster: []string{"m1", "m2", "m3"}}
	for _, opt := range opts {
		opt(setup)
	}
	if setup.defaults == nil {
		setup.defaults = setup.roster
	}

	cfg := &config.CouncilConfig{
		ChairmanModelID:  "chairman",
		DefaultModels:    setup.defaults,
		Temperature:      0.7,
		MaxTokens:        512,
		PerCallTimeout:   2 * time.Second,
		Stage1Deadline:   2 * time.Second,
		Stage2Deadline:   2 * time.Second,
		Stage3Deadline:   2 * time.Second,
		TurnDeadline:     5 * time.Second,
		OutputBufferSize: 64,
	}
	for _, mutate := range setup.mutate {
		mutate(cfg)
	}

	client := NewScriptedModelClient()
	registry := newScriptedRegistry(setup.roster, setup.defaults, cfg.ChairmanModelID, client)
	st := store.NewMemoryStore()

	return &TestCouncil{
		t:            t,
		Client:       client,
		Store:        st,
		Config:       cfg,
		Orchestrator: council.New(registry, st, cfg),
	}
}

// scriptedRegistry resolves ids against a fixed roster and hands every
// model the shared scripted client.
type scriptedRegistry struct {
	byID     map[string]models.ModelDescriptor
	defaults []string
	chairman models.ModelDescriptor
	client   llm.Client
}

func newScriptedRegistry(roster, defaults []string, chairmanID string, client llm.Client) *scriptedRegistry {
	byID := make(map[string]models.ModelDescriptor, len(roster))
	for _, id := range roster {
		byID[id] = models.ModelDescriptor{ID: id, DisplayName: id, ProviderTag: "scripted", IsChairman: id == chairmanID}
	}
	return &scriptedRegistry{
		byID:     byID,
		defaults: defaults,
		chairman: models.ModelDescriptor{ID: chairmanID, DisplayName: chairmanID, ProviderTag: "scripted", IsChairman: true},
		client:   client,
	}
}

func (r *scriptedRegistry) Resolve(ids []string) (resolved []models.ModelDescriptor, unknown []string) {
	if len(ids) == 0 {
		ids = r.defaults
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if d, ok := r.byID[id]; ok {
			resolved = append(resolved, d)
		} else {
			unknown = append(unknown, id)
		}
	}
	return resolved, unknown
}

func (r *scriptedRegistry) Chairman() models.ModelDescriptor {
	return r.chairman
}

func (r *scriptedRegistry) ClientFor(models.ModelDescriptor) (llm.Client, error) {
	return r.client, nil
}

// TurnResult is the full outcome of one collected turn.
type TurnResult struct {
	Session *council.Session
	Events  []events.Event
	Turn    *models.CouncilTurn
	Err     error
}

// Ask runs one turn to completion and collects its whole event stream.
func (tc *TestCouncil) Ask(message string, modelIDs ...string) TurnResult {
	tc.t.Helper()

	sess, err := tc.Orchestrator.Run(context.Background(), council.Request{
		Message:        message,
		SelectedModels: modelIDs,
	})
	require.NoError(tc.t, err, "starting the turn should succeed")

	evs := tc.Collect(sess)
	turn, turnErr := sess.Wait()
	return TurnResult{Session: sess, Events: evs, Turn: turn, Err: turnErr}
}

// AskConversation is Ask against an explicit conversation id.
func (tc *TestCouncil) AskConversation(conversationID, message string, modelIDs ...string) TurnResult {
	tc.t.Helper()

	sess, err := tc.Orchestrator.Run(context.Background(), council.Request{
		ConversationID: conversationID,
		Message:        message,
		SelectedModels: modelIDs,
	})
	require.NoError(tc.t, err, "starting the turn should succeed")

	evs := tc.Collect(sess)
	turn, turnErr := sess.Wait()
	return TurnResult{Session: sess, Events: evs, Turn: turn, Err: turnErr}
}

// Start launches a turn without consuming its stream, for abort tests.
func (tc *TestCouncil) Start(message string, modelIDs ...string) *council.Session {
	tc.t.Helper()

	sess, err := tc.Orchestrator.Run(context.Background(), council.Request{
		Message:        message,
		SelectedModels: modelIDs,
	})
	require.NoError(tc.t, err, "starting the turn should succeed")
	return sess
}

// Collect drains the session's event stream until it closes.
func (tc *TestCouncil) Collect(sess *council.Session) []events.Event {
	tc.t.Helper()

	var evs []events.Event
	timeout := time.After(collectTimeout)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		case <-timeout:
			tc.t.Fatalf("timed out draining event stream after %d events", len(evs))
			return nil
		}
	}
}

// Conversation loads a stored conversation, failing the test when missing.
func (tc *TestCouncil) Conversation(id string) *models.Conversation {
	tc.t.Helper()

	conv, err := tc.Store.Load(context.Background(), id)
	require.NoError(tc.t, err, "conversation %s should exist", id)
	return conv
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

func concatText(evs []events.Event, eventType, modelID string) string {
	var b strings.Builder
	for _, ev := range evs {
		if ev.Type == eventType && ev.ModelID == modelID {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

// assertStageUpdates checks the stage announcements appear exactly in the
// given order.
func assertStageUpdates(t *testing.T, evs []events.Event, want ...events.Stage) {
	t.Helper()

	var got []events.Stage
	for _, ev := range eventsOfType(evs, events.EventTypeStageUpdate) {
		got = append(got, ev.Stage)
	}
	assert.Equal(t, want, got, "stage announcements")
}

// assertTerminal checks the stream ends with exactly one terminal event of
// the wanted type and returns it.
func assertTerminal(t *testing.T, evs []events.Event, wantType string) events.Event {
	t.Helper()

	require.NotEmpty(t, evs, "stream produced no events")
	last := evs[len(evs)-1]
	assert.Equal(t, wantType, last.Type, "terminal event type")
	assert.Empty(t, last.ModelID, "terminal events carry no model id")

	completes := len(eventsOfType(evs, events.EventTypeComplete))
	terminalErrors := 0
	for _, ev := range eventsOfType(evs, events.EventTypeError) {
		if ev.ModelID == "" {
			terminalErrors++
		}
	}
	assert.Equal(t, 1, completes+terminalErrors, "exactly one terminal event")
	return last
}

// assertReviewInvariants checks every review on the stream ranks only the
// reviewer's surviving peers, never itself, with contiguous unique ranks.
func assertReviewInvariants(t *testing.T, evs []events.Event, turn *models.CouncilTurn) {
	t.Helper()

	survivors := make(map[string]bool)
	for _, op := range models.NonErrorOpinions(turn.Opinions) {
		survivors[op.ModelID] = true
	}

	for _, ev := range eventsOfType(evs, events.EventTypeReview) {
		require.NotNil(t, ev.Data, "review event carries data")
		assert.True(t, survivors[ev.ModelID], "reviewer %s produced a non-error opinion", ev.ModelID)

		seen := make(map[string]bool, len(ev.Data.Rankings))
		for i, rk := range ev.Data.Rankings {
			assert.NotEqual(t, ev.ModelID, rk.ModelID, "reviewer %s ranked itself", ev.ModelID)
			assert.True(t, survivors[rk.ModelID], "reviewer %s ranked non-survivor %s", ev.ModelID, rk.ModelID)
			assert.False(t, seen[rk.ModelID], "reviewer %s ranked %s twice", ev.ModelID, rk.ModelID)
			seen[rk.ModelID] = true
			assert.Equal(t, i+1, rk.Rank, "ranks are contiguous from 1")
		}
	}
}

// assertStreamMatchesPersisted checks the persisted turn text equals the
// concatenation of what was streamed, model by model.
func assertStreamMatchesPersisted(t *testing.T, evs []events.Event, turn *models.CouncilTurn) {
	t.Helper()

	for _, op := range turn.Opinions {
		if op.Errored() {
			assert.Empty(t, op.Text, "errored opinion %s keeps no text", op.ModelID)
			continue
		}
		streamed := concatText(evs, events.EventTypeModelResponse, op.ModelID)
		assert.Equal(t, streamed, op.Text, "persisted opinion of %s matches its stream", op.ModelID)
	}
	assert.Equal(t, concatText(evs, events.EventTypeFinalResponse, ""), turn.FinalText,
		"persisted final text matches the final_response stream")
}
