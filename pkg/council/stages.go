package council

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/synod-ai/synod/pkg/config"
	"github.com/synod-ai/synod/pkg/events"
	"github.com/synod-ai/synod/pkg/llm"
	"github.com/synod-ai/synod/pkg/models"
	"github.com/synod-ai/synod/pkg/prompt"
	"github.com/synod-ai/synod/pkg/review"
)

// Per-model error reasons with fixed wire values.
const (
	reasonTimeout   = "timeout"
	reasonCancelled = "cancelled"
)

// detachGrace is how long a stage keeps collecting results after its
// deadline before detaching from the remaining model tasks.
const detachGrace = 500 * time.Millisecond

// stageRunner executes the three deliberation stages of one turn.
//
// Per-model tasks never touch the event stream directly: they funnel
// events and results through stage-local channels, and the turn goroutine
// publishes. The stream stays single-writer, so a detached straggler can
// never race the terminal CloseSend.
type stageRunner struct {
	registry ModelRegistry
	prompts  *prompt.Builder
	stream   *events.Stream
	cfg      *config.CouncilConfig
}

func newStageRunner(registry ModelRegistry, prompts *prompt.Builder, stream *events.Stream, cfg *config.CouncilConfig) *stageRunner {
	return &stageRunner{registry: registry, prompts: prompts, stream: stream, cfg: cfg}
}

func (r *stageRunner) request(d models.ModelDescriptor, messages []llm.Message) *llm.Request {
	return &llm.Request{
		Model:       d.ID,
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}
}

// indexedOpinion carries one finished stage-1 task back to the collect
// loop. eventSent records whether the task already funneled its own error
// event.
type indexedOpinion struct {
	index     int
	opinion   models.ModelOpinion
	eventSent bool
}

// runOpinions fans the stage-1 prompt out to every councilor and collects
// opinions until all return or the stage deadline fires. Councilors that
// miss the deadline plus grace are detached and recorded as errored; their
// error events are published here, after collection, so no stage-1 event
// trails into the next stage.
func (r *stageRunner) runOpinions(ctx context.Context, councilors []models.ModelDescriptor, messages []llm.Message) []models.ModelOpinion {
	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.Stage1Deadline)
	defer cancel()

	eventCh := make(chan events.Event, len(councilors))
	results := make(chan indexedOpinion, len(councilors))
	for i, d := range councilors {
		go func(idx int, d models.ModelDescriptor) {
			opinion, sent := r.streamOpinion(stageCtx, d, messages, eventCh)
			results <- indexedOpinion{index: idx, opinion: opinion, eventSent: sent}
		}(i, d)
	}

	opinions := make([]models.ModelOpinion, len(councilors))
	collected := make([]bool, len(councilors))
	pendingErr := make([]bool, len(councilors))
	lostChunks := make(map[string]bool)
	remaining := len(councilors)

	record := func(res indexedOpinion) {
		opinions[res.index] = res.opinion
		collected[res.index] = true
		pendingErr[res.index] = res.opinion.Errored() && !res.eventSent
		remaining--
	}
	forward := func(ev events.Event) {
		if err := r.stream.Publish(ctx, ev); err != nil && ev.Type == events.EventTypeModelResponse {
			lostChunks[ev.ModelID] = true
		}
	}

collect:
	for remaining > 0 {
		select {
		case ev := <-eventCh:
			forward(ev)
		case res := <-results:
			record(res)
		case <-stageCtx.Done():
			break collect
		}
	}

	if remaining > 0 {
		grace := time.NewTimer(detachGrace)
		defer grace.Stop()
	drain:
		for remaining > 0 {
			select {
			case ev := <-eventCh:
				forward(ev)
			case res := <-results:
				record(res)
			case <-grace.C:
				break drain
			}
		}
	}

	if remaining == 0 {
		// Every producer returned; flush funnel items buffered behind the
		// last result.
	flush:
		for {
			select {
			case ev := <-eventCh:
				forward(ev)
			default:
				break flush
			}
		}
	}

	reason := reasonForContext(stageCtx)
	for i := range councilors {
		if !collected[i] {
			opinions[i] = models.ModelOpinion{
				ModelID:    councilors[i].ID,
				Err:        reason,
				FinishedAt: time.Now(),
			}
			pendingErr[i] = true
		}
	}

	// An opinion whose chunks could not all be delivered must not keep its
	// text: persisted text always equals the published concatenation.
	for i := range opinions {
		if !opinions[i].Errored() && lostChunks[opinions[i].ModelID] {
			opinions[i].Text = ""
			opinions[i].Usage = nil
			opinions[i].Err = reasonForContext(ctx)
			pendingErr[i] = true
		}
	}

	for i := range opinions {
		if pendingErr[i] {
			_ = r.stream.Publish(ctx, events.NewError(opinions[i].ModelID, opinions[i].Err))
		}
	}
	return opinions
}

// streamOpinion issues one councilor's stage-1 call, funneling chunks as
// model_response events. The returned bool reports whether the opinion's
// error event, if any, made it into the funnel.
func (r *stageRunner) streamOpinion(ctx context.Context, d models.ModelDescriptor, messages []llm.Message, eventCh chan<- events.Event) (models.ModelOpinion, bool) {
	opinion := models.ModelOpinion{ModelID: d.ID}

	client, err := r.registry.ClientFor(d)
	if err != nil {
		return failOpinion(ctx, opinion, err, eventCh)
	}
	chunks, err := client.Stream(ctx, r.request(d, messages))
	if err != nil {
		return failOpinion(ctx, opinion, err, eventCh)
	}

	var text strings.Builder
	for chunk := range chunks {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			// Funnel first; count the chunk only once it is on its way to
			// the stream.
			if !sendEvent(ctx, eventCh, events.NewModelResponse(d.ID, c.Text)) {
				return failOpinion(ctx, opinion, ctx.Err(), eventCh)
			}
			text.WriteString(c.Text)
		case *llm.UsageChunk:
			opinion.Usage = &models.TokenUsage{InputTokens: c.Input, OutputTokens: c.Output, TotalTokens: c.Total}
		case *llm.ErrorChunk:
			return failOpinion(ctx, opinion, c.Err, eventCh)
		}
	}

	opinion.Text = text.String()
	opinion.FinishedAt = time.Now()
	return opinion, true
}

// failOpinion normalizes a failed call: no text survives, the wire reason
// is recorded, and the error event is funneled best-effort.
func failOpinion(ctx context.Context, opinion models.ModelOpinion, err error, eventCh chan<- events.Event) (models.ModelOpinion, bool) {
	opinion.Text = ""
	opinion.Usage = nil
	opinion.Err = errorReason(ctx, err)
	opinion.FinishedAt = time.Now()
	sent := sendEvent(ctx, eventCh, events.NewError(opinion.ModelID, opinion.Err))
	return opinion, sent
}

// indexedReview carries one finished stage-2 call back to the collect loop.
type indexedReview struct {
	index  int
	result models.ReviewResult
	err    error
}

// runReviews asks every councilor that produced an opinion to rank its
// anonymized peers. Review events go out in arrival order. Reviewer
// failures are soft: an error event is published and the review skipped.
func (r *stageRunner) runReviews(ctx context.Context, councilors []models.ModelDescriptor, userMessage string, opinions []models.ModelOpinion) []models.ReviewResult {
	labeled := review.Anonymize(opinions)
	if len(labeled) == 0 {
		return nil
	}

	byID := make(map[string]models.ModelDescriptor, len(councilors))
	for _, d := range councilors {
		byID[d.ID] = d
	}
	reviewers := make([]models.ModelDescriptor, 0, len(labeled))
	for _, lo := range labeled {
		if d, ok := byID[lo.ModelID]; ok {
			reviewers = append(reviewers, d)
		}
	}

	messages := r.prompts.Stage2Messages(userMessage, labeled)

	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.Stage2Deadline)
	defer cancel()

	results := make(chan indexedReview, len(reviewers))
	for i, d := range reviewers {
		go func(idx int, d models.ModelDescriptor) {
			result, err := r.collectReview(stageCtx, d, labeled, messages)
			results <- indexedReview{index: idx, result: result, err: err}
		}(i, d)
	}

	reviews := make([]models.ReviewResult, 0, len(reviewers))
	received := make([]bool, len(reviewers))
	remaining := len(reviewers)

	record := func(res indexedReview) {
		received[res.index] = true
		remaining--
		if res.err != nil {
			_ = r.stream.Publish(ctx, events.NewError(reviewers[res.index].ID, errorReason(stageCtx, res.err)))
			return
		}
		reviews = append(reviews, res.result)
		_ = r.stream.Publish(ctx, events.NewReview(res.result.ReviewerModelID, res.result.Rankings, res.result.ParseOK))
	}

collect:
	for remaining > 0 {
		select {
		case res := <-results:
			record(res)
		case <-stageCtx.Done():
			break collect
		}
	}

	if remaining > 0 {
		grace := time.NewTimer(detachGrace)
		defer grace.Stop()
	drain:
		for remaining > 0 {
			select {
			case res := <-results:
				record(res)
			case <-grace.C:
				break drain
			}
		}

		reason := reasonForContext(stageCtx)
		for i, d := range reviewers {
			if !received[i] {
				_ = r.stream.Publish(ctx, events.NewError(d.ID, reason))
			}
		}
	}
	return reviews
}

// collectReview runs one reviewer call and parses the reply.
func (r *stageRunner) collectReview(ctx context.Context, d models.ModelDescriptor, labeled []review.LabeledOpinion, messages []llm.Message) (models.ReviewResult, error) {
	client, err := r.registry.ClientFor(d)
	if err != nil {
		return models.ReviewResult{}, err
	}
	raw, err := client.Complete(ctx, r.request(d, messages))
	if err != nil {
		return models.ReviewResult{}, err
	}
	return review.Parse(d.ID, labeled, raw), nil
}

// runSynthesis streams the chairman's synthesis, publishing chunks as
// final_response events. A stage deadline that fires after text has flowed
// truncates: the partial text stands and the turn still completes. Any
// other failure, including a zero-output deadline, is returned to the
// orchestrator as a chairman failure.
func (r *stageRunner) runSynthesis(ctx context.Context, chairman models.ModelDescriptor, messages []llm.Message) (string, *models.TokenUsage, error) {
	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.Stage3Deadline)
	defer cancel()

	client, err := r.registry.ClientFor(chairman)
	if err != nil {
		return "", nil, err
	}
	chunks, err := client.Stream(stageCtx, r.request(chairman, messages))
	if err != nil {
		return "", nil, err
	}

	var (
		text     strings.Builder
		usage    *models.TokenUsage
		chunkErr error
	)
	for chunk := range chunks {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			if chunkErr != nil {
				continue
			}
			if err := r.stream.Publish(ctx, events.NewFinalResponse(c.Text)); err != nil {
				chunkErr = err
				continue
			}
			text.WriteString(c.Text)
		case *llm.UsageChunk:
			usage = &models.TokenUsage{InputTokens: c.Input, OutputTokens: c.Output, TotalTokens: c.Total}
		case *llm.ErrorChunk:
			if chunkErr == nil {
				chunkErr = c.Err
			}
		}
	}

	if chunkErr != nil {
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && text.Len() > 0 {
			return text.String(), usage, nil
		}
		return text.String(), usage, chunkErr
	}
	return text.String(), usage, nil
}

// sendEvent funnels one event toward the collect loop, giving up when ctx
// ends first.
func sendEvent(ctx context.Context, eventCh chan<- events.Event, ev events.Event) bool {
	select {
	case eventCh <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// errorReason maps a model call failure to its wire reason. Context
// conclusions win over provider error text, so a deadline reads as
// "timeout" and a cancellation as "cancelled" however the SDK wrapped it.
func errorReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return reasonCancelled
	case err != nil:
		return err.Error()
	default:
		return reasonCancelled
	}
}

// reasonForContext classifies why an expired stage context ended.
func reasonForContext(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return reasonCancelled
	}
	return reasonTimeout
}
