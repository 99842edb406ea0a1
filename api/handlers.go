package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/answerer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/streamer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/worker"
)

// HeaderErrorID carries the identifier of the admin error report on failed
// answers.
const HeaderErrorID = "X-Error-Id"

// StatusClientClosedRequest is returned when the caller went away before the
// answer was complete.
const StatusClientClosedRequest = 499

// QuestionRequest is the body of POST /llm/questions.
type QuestionRequest struct {
	answerer.Question

	// NotifyEmail, when set, receives a "new answer" email once the answer
	// is ready.
	NotifyEmail string `json:"notify_email,omitempty"`

	// Section names the course section in the notification email.
	Section string `json:"section,omitempty"`
}

// QuestionResponse is the body of a successful POST /llm/questions.
type QuestionResponse struct {
	QuestionID string `json:"id,omitempty"`
	Answer     string `json:"answer"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleQuestion streams an answer for the posted question and returns it
// once complete.
func (s *Server) handleQuestion(c *fiber.Ctx) error {
	var req QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "question is required"})
	}

	start := time.Now()
	ans, err := s.config.Asker.Answer(c.UserContext(), req.Question)
	elapsed := time.Since(start)

	if err != nil {
		return s.answerFailed(c, req, elapsed, err)
	}

	s.publish(req.Question, eventstream.Outcome{
		DurationMs:  elapsed.Milliseconds(),
		AnswerChars: len([]rune(ans.Text)),
	})
	s.notifyNewAnswer(req)

	return c.JSON(QuestionResponse{
		QuestionID: req.QuestionID,
		Answer:     ans.Text,
		ElapsedMs:  ans.Elapsed.Milliseconds(),
	})
}

func (s *Server) answerFailed(c *fiber.Ctx, req QuestionRequest, elapsed time.Duration, err error) error {
	kind := streamer.Kind(err)

	s.logger.Error("failed to answer question",
		"question_id", req.QuestionID,
		"page_id", req.PageID,
		"error_kind", kind,
		"error", err,
	)

	s.publish(req.Question, eventstream.Outcome{
		DurationMs: elapsed.Milliseconds(),
		ErrorKind:  kind,
	})

	if errorID := s.reportError(req.QuestionID, err); errorID != "" {
		c.Set(HeaderErrorID, errorID)
	}

	return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
}

// statusFor maps a failure kind to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, streamer.ErrConfiguration):
		return fiber.StatusInternalServerError
	case errors.Is(err, streamer.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, streamer.ErrConnection), errors.Is(err, streamer.ErrEmptyResponse):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// publish queues an answer event. Events never carry the question or
// answer text.
func (s *Server) publish(q answerer.Question, outcome eventstream.Outcome) {
	event := eventstream.NewAnswerEvent(s.config.Source, eventstream.QuestionMeta{
		QuestionID: q.QuestionID,
		PageID:     q.PageID,
		NotesDivID: q.NotesDivID,
	}, outcome)

	s.pool.Enqueue(worker.Job{
		Kind:       "event." + event.EventType,
		QuestionID: q.QuestionID,
		Run: func(ctx context.Context) error {
			return s.config.Publisher.PublishAnswer(ctx, event)
		},
	})
}

func (s *Server) notifyNewAnswer(req QuestionRequest) {
	if s.config.Mailer == nil || strings.TrimSpace(req.NotifyEmail) == "" {
		return
	}

	s.pool.Enqueue(worker.Job{
		Kind:       "notify.new_answer",
		QuestionID: req.QuestionID,
		Run: func(ctx context.Context) error {
			return s.config.Mailer.NotifyNewAnswer(ctx, req.NotifyEmail, req.Section, req.QuestionID)
		},
	})
}

// reportError queues an admin error email and returns its identifier, or ""
// when email is disabled. Cancellations by the caller are not reported.
func (s *Server) reportError(questionID string, cause error) string {
	if s.config.Mailer == nil || errors.Is(cause, context.Canceled) {
		return ""
	}

	errorID := uuid.NewString()
	s.pool.Enqueue(worker.Job{
		Kind:       "notify.error",
		QuestionID: questionID,
		Run: func(ctx context.Context) error {
			return s.config.Mailer.NotifyError(ctx, errorID, cause)
		},
	})

	return errorID
}
