// Package llm holds the provider-agnostic types used to ask a chat
// completion service a single question and collect its streamed answer.
package llm

import "time"

// StreamRequest describes one streamed question to a chat completion
// endpoint. It is built once per call and passed by value, so the executor
// never observes changes made by the caller after dispatch.
type StreamRequest struct {
	// Endpoint is the full chat completions URL
	// (e.g. "https://example.org/llm/chat/completions").
	Endpoint string

	// Model is the model identifier, sent both in the body and as the
	// "model" header.
	Model string

	// Correlation identifiers, forwarded verbatim as opaque headers.
	PageID     string
	NotesDivID string
	QuestionID string

	// Question is the user question text.
	Question string

	// APIKey is the bearer credential.
	APIKey string

	// Timeout bounds the whole call, measured from request start.
	Timeout time.Duration
}
