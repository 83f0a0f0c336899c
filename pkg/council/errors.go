package council

import "errors"

var (
	// ErrEmptyMessage rejects a request whose user message is blank.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrNoCouncilors means neither the request nor the configured
	// defaults named a usable model.
	ErrNoCouncilors = errors.New("no councilors available")

	// ErrNoOpinions means every stage-1 call failed, leaving nothing to
	// deliberate on.
	ErrNoOpinions = errors.New("no opinions produced")

	// ErrAborted means the caller severed the event stream mid-turn.
	ErrAborted = errors.New("turn aborted by caller")

	// ErrTurnTimeout means the whole-turn deadline elapsed.
	ErrTurnTimeout = errors.New("turn deadline exceeded")
)
