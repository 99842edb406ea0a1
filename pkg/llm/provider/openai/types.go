package openai

// chatRequest represents OpenAI's chat completions request format, reduced to
// the fields a single streamed question needs.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage represents a message in OpenAI's format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamChunk represents one "chat.completion.chunk" object carried by a
// "data: " frame. Only the fields the accumulator reads are declared; all
// others are ignored by encoding/json.
type streamChunk struct {
	Choices []streamChoice `json:"choices"`
}

type streamChoice struct {
	Delta struct {
		Content *string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}
