package llm

import (
	"strings"
	"time"
)

// Answer is the final aggregated response to a StreamRequest.
type Answer struct {
	// Text is the trimmed concatenation of every content fragment, in
	// arrival order.
	Text string `json:"answer"`

	// Elapsed is the wall-clock time from request start to the end of the
	// stream.
	Elapsed time.Duration `json:"-"`
}

// ErrorResponse is the JSON body returned by the HTTP API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Signal tells the read loop whether to keep going after a delta.
type Signal int

const (
	// SignalContinue keeps the read loop running.
	SignalContinue Signal = iota

	// SignalStop ends the read loop after the current delta.
	SignalStop
)

// Accumulator appends streamed content fragments into a running answer.
// It is not safe for concurrent use; each request owns its own.
type Accumulator struct {
	buf       strings.Builder
	fragments int
}

// Apply appends the delta's content verbatim (no trimming, no dedup) and
// reports SignalStop when the delta carries finish_reason "stop". Content
// carried by the stopping delta is kept.
func (a *Accumulator) Apply(d Delta) Signal {
	if d.Content != nil {
		a.buf.WriteString(*d.Content)
		a.fragments++
	}

	if d.IsStop() {
		return SignalStop
	}

	return SignalContinue
}

// Text returns the untrimmed text accumulated so far.
func (a *Accumulator) Text() string {
	return a.buf.String()
}

// Fragments returns how many content fragments were applied.
func (a *Accumulator) Fragments() int {
	return a.fragments
}
