// Package council orchestrates multi-model deliberation turns: a fan-out
// of streamed first opinions, an anonymized peer-review round, and a
// chairman synthesis, emitted as one ordered event stream per turn.
package council

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/prompt"
	"github.com/synod-ai/synod/pkg/review"
	"github.com/synod-ai/synod/pkg/store"
)

// Stage announcement texts.
const (
	contentFirstOpinions = "Gathering initial responses from council members..."
	contentReview        = "Council members reviewing each other's responses..."
	contentFinalResponse = "Chairman (%s) compiling final response..."
)

const (
	// terminalGrace bounds delivery of the terminal event on a fresh
	// context, since the turn context is usually already dead by then.
	terminalGrace = 5 * time.Second
	// persistTimeout bounds the turn-boundary write the same way.
	persistTimeout = 10 * time.Second
)

// ModelRegistry is the model lookup surface the orchestrator needs.
// *llm.Registry satisfies it.
type ModelRegistry interface {
	Resolve(ids []string) ([]models.ModelDescriptor, []string)
	Chairman() models.ModelDescriptor
	ClientFor(d models.ModelDescriptor) (llm.Client, error)
}

// Request describes one deliberation turn.
type Request struct {
	// ConversationID selects the conversation to continue. Empty starts a
	// new conversation with a minted id.
	ConversationID string
	// Message is the user's question for the council.
	Message string
	// SelectedModels restricts the council to these model ids. Empty means
	// the configured default council.
	SelectedModels []string
}

// Session is a handle on one running turn.
type Session struct {
	stream         *events.Stream
	conversationID string

	done chan struct{}
	turn *models.CouncilTurn
	err  error
}

// Events returns the turn's ordered event stream. The channel closes after
// the terminal event, or without one when the session is aborted.
func (s *Session) Events() <-chan events.Event {
	return s.stream.Events()
}

// ConversationID returns the id of the conversation this turn belongs to,
// minted during initialization when the request carried none.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Abort severs the stream: no further events are delivered, no terminal
// event is emitted, and in-flight model calls are cancelled.
func (s *Session) Abort() {
	s.stream.Abort()
}

// Wait blocks until the turn finishes and reports its outcome. The turn is
// non-nil exactly when it was persisted.
func (s *Session) Wait() (*models.CouncilTurn, error) {
	<-s.done
	return s.turn, s.err
}

func (s *Session) finish(turn *models.CouncilTurn, err error) {
	s.turn = turn
	s.err = err
	close(s.done)
}

// Orchestrator runs council turns against a model registry and a
// conversation store.
type Orchestrator struct {
	registry ModelRegistry
	store    store.ConversationStore
	prompts  *prompt.Builder
	cfg      *config.CouncilConfig
}

func New(registry ModelRegistry, st store.ConversationStore, cfg *config.CouncilConfig) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    st,
		prompts:  prompt.NewBuilder(),
		cfg:      cfg,
	}
}

// turnJob carries everything one turn goroutine needs.
type turnJob struct {
	sess        *Session
	conv        *models.Conversation
	councilors  []models.ModelDescriptor
	unknown     []string
	userMessage string
	startedAt   time.Time
}

// Run validates the request, resolves the conversation, and starts the
// turn. It returns once initialization is done; the deliberation itself
// runs in the background and reports through the session.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Session, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	startedAt := time.Now()

	// The turn deadline clock starts here: conversation load included.
	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnDeadline)

	conv, err := o.loadConversation(turnCtx, req.ConversationID)
	if err != nil {
		cancel()
		return nil, err
	}

	councilors, unknown := o.registry.Resolve(req.SelectedModels)

	sess := &Session{
		stream:         events.NewStream(o.cfg.OutputBufferSize),
		conversationID: conv.ID,
		done:           make(chan struct{}),
	}

	slog.Info("council turn starting",
		"conversation_id", conv.ID,
		"councilors", len(councilors),
		"chairman", o.registry.Chairman().ID)

	go o.runTurn(turnCtx, cancel, turnJob{
		sess:        sess,
		conv:        conv,
		councilors:  councilors,
		unknown:     unknown,
		userMessage: req.Message,
		startedAt:   startedAt,
	})
	return sess, nil
}

// RunSync runs a turn to completion, discarding streamed events, and
// returns its outcome.
func (o *Orchestrator) RunSync(ctx context.Context, req Request) (*models.CouncilTurn, error) {
	sess, err := o.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	for range sess.Events() {
	}
	return sess.Wait()
}

func (o *Orchestrator) loadConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		conv, err := o.store.Create(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return conv, nil
	}
	conv, err := o.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		// Unknown ids start a fresh conversation under the caller's id.
		conv, err = o.store.Create(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	return conv, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, cancel context.CancelFunc, job turnJob) {
	defer cancel()

	// An abort must reach in-flight model calls promptly.
	go func() {
		select {
		case <-job.sess.stream.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	turn, err := o.deliberate(ctx, job)
	if err != nil {
		slog.Error("council turn failed",
			"conversation_id", job.conv.ID,
			"error", err)
	} else {
		slog.Info("council turn completed",
			"conversation_id", job.conv.ID,
			"turn_id", turn.TurnID,
			"opinions", len(turn.Opinions),
			"reviews", len(turn.Reviews))
	}
	job.sess.finish(turn, err)
}

// deliberate runs the three stages and closes out the turn. The returned
// turn is non-nil exactly when it was persisted.
func (o *Orchestrator) deliberate(ctx context.Context, job turnJob) (*models.CouncilTurn, error) {
	stream := job.sess.stream
	runner := newStageRunner(o.registry, o.prompts, stream, o.cfg)

	turn := &models.CouncilTurn{
		TurnID:      uuid.NewString(),
		UserMessage: job.userMessage,
		StartedAt:   job.startedAt,
	}

	if len(job.councilors) == 0 {
		o.terminate(stream, events.NewError("", events.ReasonNoCouncilors))
		return nil, ErrNoCouncilors
	}

	// Stage 1: parallel first opinions.
	_ = stream.Publish(ctx, events.NewStageUpdate(events.StageFirstOpinions, contentFirstOpinions))
	for _, id := range job.unknown {
		_ = stream.Publish(ctx, events.NewError(id, "unknown model"))
	}
	turn.Opinions = runner.runOpinions(ctx, job.councilors, o.prompts.Stage1Messages(job.conv.Messages, job.userMessage))
	if cause := interruption(ctx, stream); cause != nil {
		return o.finishInterrupted(stream, job.conv, turn, cause)
	}
	if len(models.NonErrorOpinions(turn.Opinions)) == 0 {
		turn.FinishedAt = time.Now()
		return o.failTurn(stream, job.conv, turn, "", events.ReasonNoOpinions, ErrNoOpinions)
	}

	// Stage 2: anonymized peer review.
	_ = stream.Publish(ctx, events.NewStageUpdate(events.StageReview, contentReview))
	turn.Reviews = runner.runReviews(ctx, job.councilors, job.userMessage, turn.Opinions)
	if cause := interruption(ctx, stream); cause != nil {
		return o.finishInterrupted(stream, job.conv, turn, cause)
	}

	// Stage 3: chairman synthesis.
	chairman := o.registry.Chairman()
	_ = stream.Publish(ctx, events.NewStageUpdate(events.StageFinalResponse, fmt.Sprintf(contentFinalResponse, chairman.ID)))
	messages := o.prompts.Stage3Messages(job.conv.Messages, job.userMessage, turn.Opinions, review.Aggregate(turn.Reviews))
	finalText, usage, synthErr := runner.runSynthesis(ctx, chairman, messages)
	turn.FinalText = finalText
	turn.FinalUsage = usage
	turn.FinishedAt = time.Now()
	if cause := interruption(ctx, stream); cause != nil {
		return o.finishInterrupted(stream, job.conv, turn, cause)
	}
	if synthErr != nil {
		failure := fmt.Errorf("chairman synthesis failed: %w", synthErr)
		return o.failTurn(stream, job.conv, turn, chairman.ID, failure.Error(), failure)
	}

	if err := o.appendTurn(job.conv, turn); err != nil {
		o.terminate(stream, events.NewError("", "persistence failed: "+err.Error()))
		return nil, fmt.Errorf("failed to persist turn: %w", err)
	}
	o.terminate(stream, events.NewComplete())
	return turn, nil
}

// interruption reports why the turn can no longer continue, or nil.
func interruption(ctx context.Context, stream *events.Stream) error {
	if stream.Aborted() {
		return ErrAborted
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTurnTimeout
	}
	return ctx.Err()
}

// finishInterrupted closes out a turn cut short between stages. A turn
// deadline still reports an error event and keeps whatever survived; an
// abort or caller cancellation severs silently, ending the stream with no
// terminal event.
func (o *Orchestrator) finishInterrupted(stream *events.Stream, conv *models.Conversation, turn *models.CouncilTurn, cause error) (*models.CouncilTurn, error) {
	if errors.Is(cause, ErrTurnTimeout) {
		turn.FinishedAt = time.Now()
		return o.failTurn(stream, conv, turn, "", events.ReasonTurnTimeout, cause)
	}
	stream.CloseSend()
	return nil, cause
}

// failTurn ends a turn with a terminal error event, persisting the partial
// turn when at least one opinion survived.
func (o *Orchestrator) failTurn(stream *events.Stream, conv *models.Conversation, turn *models.CouncilTurn, modelID, reason string, cause error) (*models.CouncilTurn, error) {
	persisted := false
	if len(models.NonErrorOpinions(turn.Opinions)) > 0 {
		if err := o.appendTurn(conv, turn); err != nil {
			slog.Error("failed to persist partial turn",
				"conversation_id", conv.ID,
				"turn_id", turn.TurnID,
				"error", err)
		} else {
			persisted = true
		}
	}
	o.terminate(stream, events.NewError(modelID, reason))
	if persisted {
		return turn, cause
	}
	return nil, cause
}

// terminate publishes the terminal event and closes the stream. By this
// point every stage goroutine has detached from the stream, so closing the
// send side is safe.
func (o *Orchestrator) terminate(stream *events.Stream, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalGrace)
	defer cancel()
	if err := stream.Publish(ctx, ev); err != nil {
		slog.Debug("terminal event not delivered", "type", ev.Type, "error", err)
	}
	stream.CloseSend()
}

// appendTurn writes the turn boundary. It runs on a fresh context because
// turn boundaries must complete their write even when the turn context has
// expired.
func (o *Orchestrator) appendTurn(conv *models.Conversation, turn *models.CouncilTurn) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	userMsg := models.ChatMessage{Role: models.RoleUser, Content: turn.UserMessage, Timestamp: turn.StartedAt}
	assistantMsg := models.ChatMessage{Role: models.RoleAssistant, Content: turn.FinalText, Timestamp: turn.FinishedAt}
	return o.store.AppendTurn(ctx, conv.ID, userMsg, turn, assistantMsg)
}
