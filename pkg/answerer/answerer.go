// Package answerer is the caller-facing entry point: it turns a forum
// question into a streamed completion request and returns the aggregated
// answer.
package answerer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/config"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/credentials"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm/provider"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/streamer"
)

// Question is a forum question to answer. The identifiers are forwarded to
// the completion service as opaque correlation headers.
type Question struct {
	PageID     string `json:"id_page"`
	NotesDivID string `json:"id_notes_div"`
	QuestionID string `json:"id"`
	Text       string `json:"question"`
}

// Config configures an Answerer.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration

	// Executor runs the streamed requests. Defaults to streamer.New with
	// Logger.
	Executor *streamer.Executor

	Logger *slog.Logger
}

// Answerer binds the completion service settings to an Executor.
// It is safe for concurrent use.
type Answerer struct {
	endpoint string
	model    string
	apiKey   string
	timeout  time.Duration

	exec   *streamer.Executor
	logger *slog.Logger
}

// New creates an Answerer.
func New(c Config) *Answerer {
	a := &Answerer{
		endpoint: c.Endpoint,
		model:    c.Model,
		apiKey:   c.APIKey,
		timeout:  c.Timeout,
		exec:     c.Executor,
		logger:   c.Logger,
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.exec == nil {
		a.exec = streamer.New(streamer.Config{Logger: a.logger})
	}

	return a
}

// FromConfig builds an Answerer from the [llm] config section and the
// stored (or environment) API key. Problems are reported as
// streamer.ErrConfiguration.
func FromConfig(cfg *config.Config, creds *credentials.Manager, logger *slog.Logger) (*Answerer, error) {
	timeout, err := cfg.LLM.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", streamer.ErrConfiguration, err)
	}

	p, err := provider.New(cfg.LLM.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", streamer.ErrConfiguration, err)
	}

	key, err := creds.Resolve(credentials.LLMAPIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", streamer.ErrConfiguration, err)
	}

	return New(Config{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   key,
		Timeout:  timeout,
		Executor: streamer.New(streamer.Config{
			Provider: p,
			Logger:   logger,
		}),
		Logger: logger,
	}), nil
}

// Answer asks q and blocks until the answer is complete, the configured
// timeout passes, or ctx is cancelled. Errors match one of the streamer
// sentinels (or context.Canceled).
func (a *Answerer) Answer(ctx context.Context, q Question, opts ...streamer.ExecOption) (*llm.Answer, error) {
	a.logger.Info("asking completion service",
		"question_id", q.QuestionID,
		"page_id", q.PageID,
		"model", a.model,
	)

	return a.exec.Execute(ctx, a.request(q), opts...)
}

// Check validates the bound configuration without any network I/O.
func (a *Answerer) Check() error {
	return streamer.Validate(a.request(Question{}))
}

func (a *Answerer) request(q Question) llm.StreamRequest {
	return llm.StreamRequest{
		Endpoint:   a.endpoint,
		Model:      a.model,
		PageID:     q.PageID,
		NotesDivID: q.NotesDivID,
		QuestionID: q.QuestionID,
		Question:   q.Text,
		APIKey:     a.apiKey,
		Timeout:    a.timeout,
	}
}
