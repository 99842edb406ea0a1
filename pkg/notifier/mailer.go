package notifier

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const (
	// DefaultSection is used when a question does not name its course section.
	DefaultSection = "Analyse 1"

	// NewAnswerSubject is the subject line of new-answer notifications.
	NewAnswerSubject = "Nouvelle réponse à votre question"

	forumGMURL     = "https://botafogo.epfl.ch/analyse-1-GM/"
	forumOnlineURL = "https://botafogo.epfl.ch/analyse-1-online/"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// MailerConfig configures a Mailer.
type MailerConfig struct {
	Notifier Notifier

	// APIName prefixes the subject of error reports.
	APIName string

	// AdminEmails receive error reports.
	AdminEmails []string
}

// Mailer renders and sends the bridge's emails.
type Mailer struct {
	notifier Notifier
	apiName  string
	admins   []string
}

// NewMailer creates a Mailer. A nil Notifier falls back to Nop.
func NewMailer(c MailerConfig) *Mailer {
	n := c.Notifier
	if n == nil {
		n = Nop{}
	}
	return &Mailer{
		notifier: n,
		apiName:  c.APIName,
		admins:   c.AdminEmails,
	}
}

// NotifyNewAnswer tells recipient that the question identified by
// questionID received an answer. An empty section uses DefaultSection.
func (m *Mailer) NotifyNewAnswer(ctx context.Context, recipient, section, questionID string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrNoRecipients
	}

	body, err := NewAnswerBody(section, questionID)
	if err != nil {
		return err
	}

	return m.notifier.Send(ctx, Message{
		Recipients: []string{recipient},
		Subject:    NewAnswerSubject,
		HTMLBody:   body,
	})
}

// NotifyError reports cause to the administrators under errorID.
func (m *Mailer) NotifyError(ctx context.Context, errorID string, cause error) error {
	if len(m.admins) == 0 {
		return ErrNoRecipients
	}
	if cause == nil {
		return errors.New("nil error report")
	}

	body, err := ErrorBody(errorID, cause.Error())
	if err != nil {
		return err
	}

	return m.notifier.Send(ctx, Message{
		Recipients: m.admins,
		Subject:    ErrorSubject(m.apiName, errorID),
		HTMLBody:   body,
	})
}

// ErrorSubject formats the subject line of an error report.
func ErrorSubject(apiName, errorID string) string {
	return fmt.Sprintf("[%s] ERROR: %s", apiName, errorID)
}

// NewAnswerBody renders the new-answer notification.
func NewAnswerBody(section, questionID string) (string, error) {
	if section == "" {
		section = DefaultSection
	}

	return render("new_answer.html", map[string]any{
		"Section":    section,
		"LinkGM":     questionLink(forumGMURL, questionID),
		"LinkOnline": questionLink(forumOnlineURL, questionID),
	})
}

// ErrorBody renders an error report. Line breaks in msg, literal "\n"
// sequences included, become <br /> tags.
func ErrorBody(errorID, msg string) (string, error) {
	parts := strings.Split(strings.ReplaceAll(msg, `\n`, "\n"), "\n")

	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = template.HTMLEscapeString(p)
	}

	return render("error.html", map[string]any{
		"ErrorID": errorID,
		// #nosec G203 -- every part is escaped above
		"Body": template.HTML(strings.Join(escaped, "<br />")),
	})
}

func questionLink(base, questionID string) string {
	q := url.Values{}
	q.Set("page", "forum_toutes_les_questions")
	q.Set("question", questionID)
	return base + "?" + q.Encode()
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
