package events

import (
	"context"
	"errors"
	"sync"
)

// DefaultBufferSize is the stream buffer capacity when the configuration
// does not set one.
const DefaultBufferSize = 128

// ErrStreamAborted indicates the consumer severed the stream; publishers
// must stop producing.
var ErrStreamAborted = errors.New("event stream aborted")

// Stream is the bounded, single-consumer event channel for one council
// turn. Producers block in Publish when the buffer is full, so a slow
// consumer throttles model streaming instead of growing memory.
//
// Ownership: many goroutines may Publish concurrently, but only the
// stream owner calls CloseSend, and only after every publisher has
// returned. Abort may be called from any goroutine at any time.
type Stream struct {
	ch   chan Event
	done chan struct{}

	closeOnce sync.Once
	abortOnce sync.Once
}

// NewStream creates a stream with the given buffer capacity.
// Non-positive values fall back to DefaultBufferSize.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Stream{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Publish delivers one event to the consumer, blocking while the buffer
// is full. It fails with ErrStreamAborted once Abort has been called and
// with ctx.Err() when the context ends first.
func (s *Stream) Publish(ctx context.Context, ev Event) error {
	// Abort wins over a buffer slot that happens to be free.
	select {
	case <-s.done:
		return ErrStreamAborted
	default:
	}

	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return ErrStreamAborted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is the consumer side. The channel closes after CloseSend once
// all buffered events are drained. After Abort the channel stays open
// but silent; consumers should select on Done as well.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Done is closed when the stream is aborted.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// CloseSend ends the stream normally. Callers must guarantee no Publish
// is in flight or will follow.
func (s *Stream) CloseSend() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

// Abort severs the stream without a terminal event: pending and future
// Publish calls fail fast, buffered events are never delivered.
// Safe to call concurrently with publishers and more than once.
func (s *Stream) Abort() {
	s.abortOnce.Do(func() {
		close(s.done)
	})
}

// Aborted reports whether Abort has been called.
func (s *Stream) Aborted() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
