package notifier

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 10 * time.Second

// SMTPConfig configures an SMTP notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	From     string
	FromName string
	ReplyTo  string

	// Timeout bounds dialing and each SMTP command. Defaults to 10s.
	Timeout time.Duration
}

// SMTP sends messages through an authenticated STARTTLS SMTP server,
// requiring TLS 1.3.
type SMTP struct {
	client *mail.Client
	config SMTPConfig
}

// NewSMTP creates an SMTP notifier. No connection is made until Send.
func NewSMTP(c SMTPConfig) (*SMTP, error) {
	if c.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if c.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultSMTPTimeout
	}

	opts := []mail.Option{
		mail.WithPort(c.Port),
		mail.WithTimeout(c.Timeout),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{
			ServerName: c.Host,
			MinVersion: tls.VersionTLS13,
		}),
	}
	if c.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.Username),
			mail.WithPassword(c.Password),
		)
	}

	client, err := mail.NewClient(c.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	return &SMTP{client: client, config: c}, nil
}

// Send delivers msg in a single SMTP session.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SMTP) buildMsg(msg Message) (*mail.Msg, error) {
	if len(msg.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	m := mail.NewMsg()
	if err := m.FromFormat(s.config.FromName, s.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if s.config.ReplyTo != "" {
		if err := m.ReplyTo(s.config.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	if msg.Attachment != "" {
		m.AttachFile(msg.Attachment)
	}

	return m, nil
}
