// Package events defines the council's caller-facing event stream and its
// NDJSON wire encoding.
//
// One council turn produces one ordered stream of events:
//
//	stage_update {stage: "first_opinions"}
//	  model_response chunks (interleaved across councilors; per-model order preserved)
//	  error {model_id} for councilors that failed (soft, stream continues)
//	stage_update {stage: "review"}
//	  review, one per surviving councilor (arrival order)
//	stage_update {stage: "final_response"}
//	  final_response chunks (chairman output, in order)
//	complete | error {content: reason}
//
// Every stream ends with exactly one terminal event (complete on success,
// error on fatal failure) except when the caller aborts: an aborted stream
// simply stops.
package events

import "github.com/synod-ai/synod/pkg/models"

// Event types, in the order they appear on a stream.
const (
	EventTypeStageUpdate   = "stage_update"
	EventTypeModelResponse = "model_response"
	EventTypeReview        = "review"
	EventTypeFinalResponse = "final_response"
	EventTypeComplete      = "complete"
	EventTypeError         = "error"
)

// Stage identifies one of the three deliberation phases.
type Stage string

const (
	StageFirstOpinions Stage = "first_opinions"
	StageReview        Stage = "review"
	StageFinalResponse Stage = "final_response"
)

// Fatal error reasons carried in the content field of a terminal error event.
const (
	// ReasonNoCouncilors: no requested or configured model resolved.
	ReasonNoCouncilors = "no_councilors"

	// ReasonNoOpinions: every stage-1 call errored, nothing to deliberate on.
	ReasonNoOpinions = "no_opinions"

	// ReasonTurnTimeout: the whole-turn deadline was reached.
	ReasonTurnTimeout = "turn_timeout"
)

// Event is one NDJSON line on the wire. Type is always set; the other
// fields accompany it depending on the variant.
type Event struct {
	Type    string      `json:"type"`               // stage_update, model_response, review, final_response, complete, error
	Stage   Stage       `json:"stage,omitempty"`    // deliberation phase the event belongs to
	ModelID string      `json:"model_id,omitempty"` // producing model (reviewer for review events)
	Content string      `json:"content,omitempty"`  // chunk text, stage description, or error reason
	Data    *ReviewData `json:"data,omitempty"`     // review events only
}

// ReviewData is the payload of a review event: one reviewer's normalized
// rankings of its anonymized peers.
type ReviewData struct {
	Rankings []models.Ranking `json:"rankings"` // never null; empty slice when parsing failed
	ParseOK  bool             `json:"parse_ok"`
}

// NewStageUpdate marks entry into a deliberation phase.
func NewStageUpdate(stage Stage, content string) Event {
	return Event{Type: EventTypeStageUpdate, Stage: stage, Content: content}
}

// NewModelResponse carries one streamed text chunk from a stage-1 councilor.
func NewModelResponse(modelID, chunk string) Event {
	return Event{Type: EventTypeModelResponse, Stage: StageFirstOpinions, ModelID: modelID, Content: chunk}
}

// NewReview carries one reviewer's parsed rankings.
func NewReview(reviewerID string, rankings []models.Ranking, parseOK bool) Event {
	if rankings == nil {
		rankings = []models.Ranking{}
	}
	return Event{
		Type:    EventTypeReview,
		Stage:   StageReview,
		ModelID: reviewerID,
		Data:    &ReviewData{Rankings: rankings, ParseOK: parseOK},
	}
}

// NewFinalResponse carries one streamed text chunk of the chairman's synthesis.
func NewFinalResponse(chunk string) Event {
	return Event{Type: EventTypeFinalResponse, Stage: StageFinalResponse, Content: chunk}
}

// NewComplete is the terminal event of a successful turn.
func NewComplete() Event {
	return Event{Type: EventTypeComplete}
}

// NewError is a terminal failure when modelID is empty, or a soft
// per-model failure when set.
func NewError(modelID, reason string) Event {
	return Event{Type: EventTypeError, ModelID: modelID, Content: reason}
}
