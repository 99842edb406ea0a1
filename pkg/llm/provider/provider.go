package provider

import (
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
)

// Provider defines the interface for one chat completion wire format: how a
// question is encoded into a request body and how each streamed data frame
// payload decodes into a delta.
type Provider interface {
	// Name returns the canonical provider name (e.g., "openai").
	Name() string

	// EncodeRequest builds the JSON request body for a streamed question.
	EncodeRequest(req llm.StreamRequest) ([]byte, error)

	// ParseStreamChunk decodes the payload of a single "data: " frame.
	// Returns an error if the payload is not valid JSON for this format.
	// A valid object lacking the expected fields decodes to an empty Delta.
	ParseStreamChunk(payload []byte) (*llm.Delta, error)
}
