// Package streamer issues a single streamed chat completion request and
// folds the event-stream response into one aggregated answer under a
// wall-clock deadline.
package streamer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm/provider"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm/provider/openai"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/sse"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/utils"
)

// Correlation headers forwarded to the completion service.
const (
	HeaderModel      = "model"
	HeaderQuestionID = "id"
	HeaderPageID     = "idpage"
	HeaderNotesDivID = "idnotesdiv"
)

// Config configures an Executor.
type Config struct {
	// HTTPClient is the transport used for every request. It must not set
	// http.Client.Timeout: the per-request deadline bounds each call and a
	// client-wide timeout would cut long streams short. Defaults to a
	// fresh &http.Client{}.
	HTTPClient *http.Client

	// Provider encodes requests and decodes stream chunks.
	// Defaults to the OpenAI-compatible format.
	Provider provider.Provider

	// Logger receives frame-level diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Executor runs streamed completion requests. It holds no per-request state,
// so a single Executor may serve many concurrent Execute calls.
type Executor struct {
	client   *http.Client
	provider provider.Provider
	logger   *slog.Logger
}

// New creates an Executor.
func New(c Config) *Executor {
	e := &Executor{
		client:   c.HTTPClient,
		provider: c.Provider,
		logger:   c.Logger,
	}

	if e.client == nil {
		e.client = &http.Client{}
	}
	if e.provider == nil {
		e.provider = openai.New()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// ExecOption tunes a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	transcript io.Writer
}

// WithTranscript copies every raw line of the response stream to w.
func WithTranscript(w io.Writer) ExecOption {
	return func(o *execOptions) {
		o.transcript = w
	}
}

// execution is the state of one Execute call. It is never shared.
type execution struct {
	req     llm.StreamRequest
	logger  *slog.Logger
	start   time.Time
	state   State
	status  int
	skipped int

	transcriptFailed bool
}

// Execute sends req and consumes the streamed response until the [DONE]
// sentinel, a finish_reason of "stop", or the end of the body. It returns
// the trimmed aggregated answer, or an error matching exactly one of
// ErrConfiguration, ErrConnection, ErrTimeout, or ErrEmptyResponse. When the
// caller cancels ctx the error wraps context.Canceled instead.
//
// The response body is closed on every path.
func (e *Executor) Execute(ctx context.Context, req llm.StreamRequest, opts ...ExecOption) (*llm.Answer, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	o := &execOptions{}
	for _, opt := range opts {
		opt(o)
	}

	body, err := e.provider.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %w", ErrConfiguration, err)
	}

	x := &execution{
		req: req,
		logger: e.logger.With(
			"request_id", uuid.NewString(),
			"question_id", req.QuestionID,
			"page_id", req.PageID,
		),
	}

	// The deadline covers connecting as well as streaming: a slow dial or
	// handshake spends the same budget the student is waiting on.
	x.start = time.Now()
	ctx, cancel := context.WithDeadline(ctx, x.start.Add(req.Timeout))
	defer cancel()

	x.transition(StateConnecting)
	resp, err := e.connect(ctx, req, body)
	if err != nil {
		return nil, x.fail(x.transportError(ctx, err))
	}
	defer resp.Body.Close()

	x.status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Non-2xx bodies are still read as a stream; anything that does
		// not parse ends up as an empty response.
		x.logger.Warn("completion service returned non-success status, reading body anyway",
			"status", resp.StatusCode,
		)
	}

	x.transition(StateStreaming)
	acc, err := e.stream(ctx, x, resp.Body, o.transcript)
	if err != nil {
		// Close now rather than on return so the peer sees the abort
		// before any further logging.
		resp.Body.Close()
		return nil, x.fail(err)
	}

	x.transition(StateFinalizing)
	text := strings.TrimSpace(acc.Text())
	if text == "" {
		return nil, x.fail(x.emptyError(acc))
	}

	answer := &llm.Answer{
		Text:    text,
		Elapsed: time.Since(x.start),
	}

	x.transition(StateDone)
	x.logger.Info("streamed answer complete",
		"elapsed", answer.Elapsed,
		"fragments", acc.Fragments(),
		"chars", len(answer.Text),
		"skipped_frames", x.skipped,
	)
	x.logger.Debug("answer preview", "answer", utils.Truncate(answer.Text, 120))

	return answer, nil
}

// Validate checks req before any network I/O. All failures wrap
// ErrConfiguration.
func Validate(req llm.StreamRequest) error {
	if req.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrConfiguration, req.Timeout)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return fmt.Errorf("%w: missing API credential", ErrConfiguration)
	}
	if strings.TrimSpace(req.Model) == "" {
		return fmt.Errorf("%w: missing model identifier", ErrConfiguration)
	}

	u, err := url.Parse(req.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: invalid endpoint: %w", ErrConfiguration, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint must be an absolute http(s) URL, got %q", ErrConfiguration, req.Endpoint)
	}

	return nil
}

// connect opens the streaming POST. ctx carries the request deadline, so the
// transport aborts the in-flight dial, handshake, or body read when it fires.
func (e *Executor) connect(ctx context.Context, req llm.StreamRequest, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("User-Agent", utils.UserAgent())
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set(HeaderModel, req.Model)
	httpReq.Header.Set(HeaderQuestionID, req.QuestionID)
	httpReq.Header.Set(HeaderPageID, req.PageID)
	httpReq.Header.Set(HeaderNotesDivID, req.NotesDivID)

	return e.client.Do(httpReq)
}

// stream drives the read loop until the stream ends or fails.
func (e *Executor) stream(ctx context.Context, x *execution, body io.Reader, transcript io.Writer) (*llm.Accumulator, error) {
	acc := &llm.Accumulator{}
	reader := sse.NewTeeReader(body, transcript)

	for {
		if elapsed := time.Since(x.start); elapsed > x.req.Timeout {
			return nil, x.timeoutError()
		}

		line, err := reader.Next()
		x.checkTranscript(reader)
		if errors.Is(err, io.EOF) {
			x.logger.Debug("stream closed by peer")
			return acc, nil
		}
		if errors.Is(err, sse.ErrFrameTooLong) {
			x.skip(sse.Event{Kind: sse.Malformed}, err)
			continue
		}
		if err != nil {
			return nil, x.transportError(ctx, err)
		}

		ev := sse.Classify(line)
		switch ev.Kind {
		case sse.Heartbeat:
			continue

		case sse.Malformed:
			x.skip(ev, errors.New("unrecognized frame shape"))

		case sse.Sentinel:
			x.logger.Debug("received end-of-stream sentinel")
			return acc, nil

		case sse.Data:
			delta, err := e.provider.ParseStreamChunk([]byte(ev.Payload))
			if err != nil {
				x.skip(ev, err)
				continue
			}

			if acc.Apply(*delta) == llm.SignalStop {
				x.logger.Debug("received finish_reason stop")
				return acc, nil
			}
		}
	}
}

func (x *execution) transition(s State) {
	x.state = s
	x.logger.Debug("stream state", "state", s.String())
}

func (x *execution) fail(err error) error {
	x.logger.Error("streamed request failed",
		"from_state", x.state.String(),
		"elapsed", time.Since(x.start),
		"error", err,
	)
	x.transition(StateFailed)
	return err
}

// skip logs one malformed frame. The loop always continues afterwards.
func (x *execution) skip(ev sse.Event, cause error) {
	x.skipped++
	x.logger.Warn("skipping malformed frame",
		"error", fmt.Errorf("%w: %w", ErrMalformedFrame, cause),
		"frame", utils.Truncate(ev.Raw, 200),
	)
}

// checkTranscript warns once when the transcript writer fails. The answer
// itself is unaffected.
func (x *execution) checkTranscript(r *sse.Reader) {
	if x.transcriptFailed || r.TeeErr() == nil {
		return
	}
	x.transcriptFailed = true
	x.logger.Warn("transcript write failed, no longer recording the stream", "error", r.TeeErr())
}

// transportError classifies a failure from the transport. The deadline wins
// over whatever error the aborted read produced.
func (x *execution) transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return x.timeoutError()
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("request aborted by caller: %w", context.Canceled)
	case x.state == StateConnecting:
		return fmt.Errorf("%w: could not open stream to %s: %w", ErrConnection, x.req.Endpoint, err)
	default:
		return fmt.Errorf("%w: stream read failed: %w", ErrConnection, err)
	}
}

func (x *execution) timeoutError() error {
	return fmt.Errorf("%w: no complete answer within %s", ErrTimeout, x.req.Timeout)
}

func (x *execution) emptyError(acc *llm.Accumulator) error {
	detail := fmt.Sprintf("stream ended without usable text (%d fragments, %d skipped frames", acc.Fragments(), x.skipped)
	if x.status < 200 || x.status > 299 {
		detail += fmt.Sprintf(", HTTP status %d", x.status)
	}
	return fmt.Errorf("%w: %s)", ErrEmptyResponse, detail)
}
