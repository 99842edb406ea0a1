// Package sse provides a minimal, purpose-built reader for the line-oriented
// SSE (Server-Sent Events) streams returned by OpenAI-compatible chat
// completion endpoints. It yields one raw line at a time and classifies each
// line into a heartbeat, a data frame, the end-of-stream sentinel, or a
// malformed frame.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities, and does not reassemble multi-line events: upstream chat
// completion services emit exactly one "data: " line per event.
//
// Event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"strings"
)

const (
	// DataPrefix is the literal prefix carried by every data frame.
	DataPrefix = "data: "

	// DoneSentinel is the payload OpenAI-compatible services send to mark the
	// end of the stream.
	DoneSentinel = "[DONE]"
)

// Kind classifies a single raw line read off the stream.
type Kind int

const (
	// Heartbeat is an empty or whitespace-only keep-alive line.
	Heartbeat Kind = iota

	// Sentinel is the in-band "data: [DONE]" end-of-stream marker.
	Sentinel

	// Data is a "data: " frame carrying a payload to decode.
	Data

	// Malformed is any other non-blank line (comments, "event:" fields,
	// vendor-specific noise).
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Heartbeat:
		return "heartbeat"
	case Sentinel:
		return "sentinel"
	case Data:
		return "data"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event represents a single classified line.
type Event struct {
	// Kind is the classification of the line.
	Kind Kind

	// Payload is the trimmed text after the "data: " prefix. Only set for
	// Data events.
	Payload string

	// Raw is the original line, kept for logging malformed frames.
	Raw string
}

// Classify turns one raw line into an Event. It never fails: anything that
// is not a blank line or a "data: " frame is reported as Malformed so callers
// can log it and keep reading.
func Classify(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{Kind: Heartbeat, Raw: line}
	}

	// Leading whitespace before the field name is not valid SSE, so the
	// prefix check runs against the untrimmed line.
	payload, ok := strings.CutPrefix(line, DataPrefix)
	if !ok {
		return Event{Kind: Malformed, Raw: line}
	}

	payload = strings.TrimSpace(payload)
	if payload == DoneSentinel {
		return Event{Kind: Sentinel, Raw: line}
	}

	return Event{Kind: Data, Payload: payload, Raw: line}
}
