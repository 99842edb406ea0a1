// Package eventstream defines the telemetry events emitted after each
// question is answered (or fails) and the publishers that ship them.
// Events carry metadata only, never the question or answer text.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAnswerCompleted is emitted after an answer was produced.
	EventTypeAnswerCompleted = "forum.answer.completed"

	// EventTypeAnswerFailed is emitted when no answer could be produced.
	EventTypeAnswerFailed = "forum.answer.failed"
)

// AnswerEvent is a transport-neutral event payload for one question.
type AnswerEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Question      QuestionMeta `json:"question"`
	Outcome       Outcome      `json:"outcome"`
}

// EventSource identifies the service and model that handled the question.
type EventSource struct {
	Service  string `json:"service"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// QuestionMeta carries the correlation identifiers of the question.
type QuestionMeta struct {
	QuestionID string `json:"question_id"`
	PageID     string `json:"page_id,omitempty"`
	NotesDivID string `json:"notes_div_id,omitempty"`
}

// Outcome summarizes how the request ended.
type Outcome struct {
	DurationMs  int64  `json:"duration_ms"`
	AnswerChars int    `json:"answer_chars,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

// NewAnswerEvent stamps a new event with an ID and emission time. A non-empty
// errorKind marks the event as failed.
func NewAnswerEvent(source EventSource, question QuestionMeta, outcome Outcome) *AnswerEvent {
	eventType := EventTypeAnswerCompleted
	if outcome.ErrorKind != "" {
		eventType = EventTypeAnswerFailed
	}

	return &AnswerEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Question:      question,
		Outcome:       outcome,
	}
}
