// Package notifier sends the emails the forum bridge produces: "new answer"
// notices to the student who asked and error reports to the administrators.
package notifier

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned when Send is called without recipients.
var ErrNoRecipients = errors.New("no recipients")

// Message is a single outgoing email.
type Message struct {
	Recipients []string
	Subject    string

	// HTMLBody is sent as text/html.
	HTMLBody string

	// Attachment is an optional file path attached to the message.
	Attachment string
}

// Notifier delivers messages.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Nop discards every message. It is used when no SMTP host is configured.
type Nop struct{}

func (Nop) Send(_ context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	return nil
}
