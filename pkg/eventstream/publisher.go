package eventstream

import (
	"context"
	"errors"
)

// ErrNilAnswerEvent is returned by publishers handed a nil event.
var ErrNilAnswerEvent = errors.New("nil answer event")

// Publisher delivers answer events to a stream backend. Publishing happens on
// the worker pool, so implementations may block until the backend acks.
type Publisher interface {
	PublishAnswer(ctx context.Context, event *AnswerEvent) error
	Close() error
}
