package council

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/store"
)

func indexOf(evs []events.Event, match func(events.Event) bool) int {
	for i, ev := range evs {
		if match(ev) {
			return i
		}
	}
	return -1
}

func TestStage1DeadlineStraggler(t *testing.T) {
	cfg := testCouncilConfig()
	cfg.Stage1Deadline = 150 * time.Millisecond

	reg, _, _, _ := twoCouncilorRegistry()
	reg.clients["beta"] = &scriptedClient{hangAfter: true}
	st := store.NewMemoryStore()
	orch := New(reg, st, cfg)

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	// The straggler's error lands inside stage 1, before the review update.
	betaErr := indexOf(evs, func(ev events.Event) bool {
		return ev.Type == events.EventTypeError && ev.ModelID == "beta"
	})
	reviewUpdate := indexOf(evs, func(ev events.Event) bool {
		return ev.Type == events.EventTypeStageUpdate && ev.Stage == events.StageReview
	})
	require.GreaterOrEqual(t, betaErr, 0, "missing straggler error event")
	require.GreaterOrEqual(t, reviewUpdate, 0)
	assert.Less(t, betaErr, reviewUpdate)

	// Review still runs for the lone survivor, with no peers to rank.
	reviews := eventsOfType(evs, events.EventTypeReview)
	require.Len(t, reviews, 1)
	assert.Equal(t, "alpha", reviews[0].ModelID)
	require.NotNil(t, reviews[0].Data)
	assert.True(t, reviews[0].Data.ParseOK)
	assert.Empty(t, reviews[0].Data.Rankings)

	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)
	assert.Equal(t, reasonTimeout, turn.Opinions[1].Err)
}

func TestStage1DetachedStraggler(t *testing.T) {
	cfg := testCouncilConfig()
	cfg.Stage1Deadline = 150 * time.Millisecond

	// beta ignores cancellation for longer than the detach grace.
	reg, _, _, _ := twoCouncilorRegistry()
	reg.clients["beta"] = &scriptedClient{hangAfter: true, linger: time.Second}
	st := store.NewMemoryStore()
	orch := New(reg, st, cfg)

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)

	errs := eventsOfType(evs, events.EventTypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "beta", errs[0].ModelID)
	assert.Equal(t, reasonTimeout, errs[0].Content)

	// The detached councilor is recorded errored; no stray chunks surface.
	require.Len(t, turn.Opinions, 2)
	assert.Equal(t, reasonTimeout, turn.Opinions[1].Err)
	assert.Empty(t, concatText(evs, events.EventTypeModelResponse, "beta"))
}

func TestStage3DeadlineTruncates(t *testing.T) {
	cfg := testCouncilConfig()
	cfg.Stage3Deadline = 150 * time.Millisecond

	reg, _, _, _ := twoCouncilorRegistry()
	reg.clients["chairman"] = &scriptedClient{
		chunks:    []llm.Chunk{&llm.TextChunk{Text: "Partial synthesis"}},
		hangAfter: true,
	}
	st := store.NewMemoryStore()
	orch := New(reg, st, cfg)

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	// Deadline mid-synthesis truncates: the partial text stands and the
	// turn completes.
	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)
	assert.Equal(t, "Partial synthesis", turn.FinalText)
	assert.Equal(t, "Partial synthesis", concatText(evs, events.EventTypeFinalResponse, ""))

	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Partial synthesis", conv.Messages[1].Content)
}

func TestStage3ZeroOutputDeadlineFailsTurn(t *testing.T) {
	cfg := testCouncilConfig()
	cfg.Stage3Deadline = 150 * time.Millisecond

	reg, _, _, _ := twoCouncilorRegistry()
	reg.clients["chairman"] = &scriptedClient{hangAfter: true}
	st := store.NewMemoryStore()
	orch := New(reg, st, cfg)

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chairman synthesis failed")

	last := evs[len(evs)-1]
	assert.Equal(t, events.EventTypeError, last.Type)
	assert.Equal(t, "chairman", last.ModelID)

	// Opinions survived, so the turn is still persisted without final text.
	require.NotNil(t, turn)
	assert.Empty(t, turn.FinalText)
	conv, err := st.Load(context.Background(), sess.ConversationID())
	require.NoError(t, err)
	require.Len(t, conv.Turns, 1)
}

func TestReviewParseFailureSoft(t *testing.T) {
	alpha := &scriptedClient{
		chunks: []llm.Chunk{&llm.TextChunk{Text: "Answer from alpha."}},
		reply:  "Rank 1: Response C — thorough\nRank 2: Response B — okay",
	}
	beta := &scriptedClient{
		chunks: []llm.Chunk{&llm.TextChunk{Text: "Answer from beta."}},
		reply:  "Rank 1: Response A — crisp\nRank 2: Response C — long",
	}
	gamma := &scriptedClient{
		chunks: []llm.Chunk{&llm.TextChunk{Text: "Answer from gamma."}},
		reply:  "I cannot rank my peers.",
	}
	reg := &fakeRegistry{
		roster:   []models.ModelDescriptor{descriptor("alpha"), descriptor("beta"), descriptor("gamma")},
		chairman: descriptor("chairman"),
		clients: map[string]llm.Client{
			"alpha":    alpha,
			"beta":     beta,
			"gamma":    gamma,
			"chairman": &scriptedClient{chunks: []llm.Chunk{&llm.TextChunk{Text: "Synthesis."}}},
		},
	}
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)

	reviews := eventsOfType(evs, events.EventTypeReview)
	require.Len(t, reviews, 3)
	byReviewer := map[string]*events.ReviewData{}
	for _, ev := range reviews {
		byReviewer[ev.ModelID] = ev.Data
	}
	require.NotNil(t, byReviewer["gamma"])
	assert.False(t, byReviewer["gamma"].ParseOK)
	assert.Empty(t, byReviewer["gamma"].Rankings)
	assert.True(t, byReviewer["alpha"].ParseOK)
	require.Len(t, byReviewer["alpha"].Rankings, 2)
	assert.Equal(t, "gamma", byReviewer["alpha"].Rankings[0].ModelID)
	assert.Equal(t, "beta", byReviewer["alpha"].Rankings[1].ModelID)

	// The unparseable reply is kept verbatim in the turn artifact.
	require.Len(t, turn.Reviews, 3)
	var gammaReview *models.ReviewResult
	for i := range turn.Reviews {
		if turn.Reviews[i].ReviewerModelID == "gamma" {
			gammaReview = &turn.Reviews[i]
		}
	}
	require.NotNil(t, gammaReview)
	assert.False(t, gammaReview.ParseOK)
	assert.Equal(t, "I cannot rank my peers.", gammaReview.RawText)
}

func TestReviewerErrorSoft(t *testing.T) {
	reg, _, beta, _ := twoCouncilorRegistry()
	beta.completeErr = errors.New("rate limited")
	st := store.NewMemoryStore()
	orch := New(reg, st, testCouncilConfig())

	sess, err := orch.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err)

	evs := drainEvents(t, sess)
	turn, err := sess.Wait()
	require.NoError(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, events.EventTypeComplete, evs[len(evs)-1].Type)

	reviewUpdate := indexOf(evs, func(ev events.Event) bool {
		return ev.Type == events.EventTypeStageUpdate && ev.Stage == events.StageReview
	})
	finalUpdate := indexOf(evs, func(ev events.Event) bool {
		return ev.Type == events.EventTypeStageUpdate && ev.Stage == events.StageFinalResponse
	})
	betaErr := indexOf(evs, func(ev events.Event) bool {
		return ev.Type == events.EventTypeError && ev.ModelID == "beta"
	})
	require.GreaterOrEqual(t, betaErr, 0, "missing reviewer error event")
	assert.True(t, betaErr > reviewUpdate && betaErr < finalUpdate, "reviewer error outside stage 2")

	reviews := eventsOfType(evs, events.EventTypeReview)
	require.Len(t, reviews, 1)
	assert.Equal(t, "alpha", reviews[0].ModelID)
	require.Len(t, turn.Reviews, 1)
	assert.Equal(t, "alpha", turn.Reviews[0].ReviewerModelID)
}

func TestErrorReason(t *testing.T) {
	live := context.Background()

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	<-expired.Done()

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want string
	}{
		{"deadline error wins", live, context.DeadlineExceeded, reasonTimeout},
		{"cancel error wins", live, context.Canceled, reasonCancelled},
		{"expired ctx beats provider text", expired, errors.New("read tcp: i/o timeout"), reasonTimeout},
		{"cancelled ctx beats provider text", cancelled, errors.New("stream closed"), reasonCancelled},
		{"provider error verbatim", live, errors.New("rate limited"), "rate limited"},
		{"nil error on live ctx", live, nil, reasonCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorReason(tt.ctx, tt.err))
		})
	}

	assert.Equal(t, reasonCancelled, reasonForContext(cancelled))
	assert.Equal(t, reasonTimeout, reasonForContext(expired))
}
