// Package openai implements the OpenAI-compatible chat completions wire
// format: request encoding and streamed chunk decoding.
package openai

import (
	"encoding/json"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
)

const roleUser = "user"

// provider implements the Provider interface for OpenAI's Chat Completions API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "openai"
}

// EncodeRequest encodes {model, messages:[{role:"user", content:question}]}.
func (o *provider) EncodeRequest(req llm.StreamRequest) ([]byte, error) {
	return json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: roleUser, Content: req.Question},
		},
	})
}

// ParseStreamChunk decodes choices[0].delta.content and
// choices[0].finish_reason. Both are nil when absent or null.
func (o *provider) ParseStreamChunk(payload []byte) (*llm.Delta, error) {
	var chunk streamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}

	if len(chunk.Choices) == 0 {
		return &llm.Delta{}, nil
	}

	choice := chunk.Choices[0]
	return &llm.Delta{
		Content:      choice.Delta.Content,
		FinishReason: choice.FinishReason,
	}, nil
}
