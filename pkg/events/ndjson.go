package events

import (
	"encoding/json"
	"fmt"
	"io"
)

// Encoder writes events as newline-delimited JSON, one object per line,
// flushing after every line so consumers see events as they happen.
type Encoder struct {
	w   io.Writer
	enc *json.Encoder
}

// NewEncoder creates an NDJSON encoder on w. When w implements a Flush
// method (bufio.Writer, http.ResponseWriter behind an http.Flusher),
// every encoded line is flushed through it.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		enc: json.NewEncoder(w),
	}
}

// Encode writes one event followed by a newline and flushes.
func (e *Encoder) Encode(ev Event) error {
	if err := e.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return e.flush()
}

// EncodeStream drains the channel, writing every event until it closes.
func (e *Encoder) EncodeStream(events <-chan Event) error {
	for ev := range events {
		if err := e.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) flush() error {
	switch f := e.w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}
