// Package nop provides the publisher used when no event backend is
// configured.
package nop

import (
	"context"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream"
)

// Publisher drops every answer event.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishAnswer rejects nil events and discards the rest.
func (*Publisher) PublishAnswer(_ context.Context, event *eventstream.AnswerEvent) error {
	if event == nil {
		return eventstream.ErrNilAnswerEvent
	}
	return nil
}

func (*Publisher) Close() error { return nil }
