package streamer

import (
	"context"
	"errors"
)

// Failure kinds returned by Execute. Callers match them with errors.Is; the
// wrapped message carries the human-readable detail.
var (
	// ErrConnection indicates the stream could not be established, or the
	// connection broke mid-stream.
	ErrConnection = errors.New("connection error")

	// ErrTimeout indicates the configured deadline passed before the stream
	// ended. The connection is torn down and no partial answer is returned.
	ErrTimeout = errors.New("timeout")

	// ErrEmptyResponse indicates the stream ended without usable text.
	ErrEmptyResponse = errors.New("empty response")

	// ErrMalformedFrame marks a single frame that failed to decode. It is
	// only ever logged; the read loop skips the frame and continues.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrConfiguration indicates invalid input detected before any network
	// I/O (non-positive timeout, missing credential, bad endpoint).
	ErrConfiguration = errors.New("configuration error")
)

// Kind names the failure kind of err for logs and telemetry: "configuration",
// "timeout", "connection", "empty_response", "canceled" or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
