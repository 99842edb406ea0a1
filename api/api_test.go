package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jeremmmyyyyy/forum-rest-api/api/mcp"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/answerer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/eventstream"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/logger"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/notifier"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/origin"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/streamer"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/worker"
)

const forumOrigin = "https://botafogo.epfl.ch"

type fakeAsker struct {
	mu     sync.Mutex
	asked  []answerer.Question
	answer string
	err    error
}

func (f *fakeAsker) Answer(_ context.Context, q answerer.Question, _ ...streamer.ExecOption) (*llm.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, q)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Answer{Text: f.answer, Elapsed: 250 * time.Millisecond}, nil
}

type outbox struct {
	mu   sync.Mutex
	sent []notifier.Message
}

func (o *outbox) Send(_ context.Context, msg notifier.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*eventstream.AnswerEvent
}

func (e *eventLog) PublishAnswer(_ context.Context, ev *eventstream.AnswerEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventLog) Close() error { return nil }

var _ = Describe("Server", func() {
	var (
		server *Server
		asker  *fakeAsker
		mail   *outbox
		events *eventLog
		pool   *worker.Pool
	)

	BeforeEach(func() {
		asker = &fakeAsker{answer: "La dérivée de x² est 2x."}
		mail = &outbox{}
		events = &eventLog{}

		var err error
		pool, err = worker.NewPool(&worker.Config{Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			ListenAddr: ":0",
			Asker:      asker,
			Origins:    origin.NewAllowList(forumOrigin),
			Source:     eventstream.EventSource{Service: "forum-rest-api", Provider: "openai", Model: "CaLlm-course"},
			Mailer: notifier.NewMailer(notifier.MailerConfig{
				Notifier:    mail,
				APIName:     "forum-rest-api",
				AdminEmails: []string{"admin@example.org"},
			}),
			Publisher: events,
			Pool:      pool,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		pool.Close()
	})

	post := func(body string, headers ...string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/llm/questions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	Describe("NewServer", func() {
		It("requires an asker", func() {
			_, err := NewServer(Config{Origins: origin.NewAllowList()})
			Expect(err).To(MatchError(ContainSubstring("asker is required")))
		})

		It("requires an origin policy", func() {
			_, err := NewServer(Config{Asker: asker})
			Expect(err).To(MatchError(ContainSubstring("origin policy is required")))
		})
	})

	Describe("/mcp", func() {
		It("is only mounted when configured", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{}")))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			mcpServer, err := mcp.NewServer(mcp.Config{Asker: asker, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			withMCP, err := NewServer(Config{
				Asker:   asker,
				Origins: origin.NewAllowList(forumOrigin),
				MCP:     mcpServer.Handler(),
				Pool:    pool,
				Logger:  logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(
				`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"v0"}}}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err = withMCP.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body string
			decode(resp, &body)
			Expect(body).To(Equal("pong"))
		})
	})

	Describe("POST /llm/questions", func() {
		It("returns the answer and forwards the identifiers", func() {
			resp := post(`{"id":"q-1","id_page":"p-7","id_notes_div":"n-3","question":"Dérivée de x² ?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body QuestionResponse
			decode(resp, &body)
			Expect(body.Answer).To(Equal("La dérivée de x² est 2x."))
			Expect(body.QuestionID).To(Equal("q-1"))
			Expect(body.ElapsedMs).To(Equal(int64(250)))

			Expect(asker.asked).To(ConsistOf(answerer.Question{
				PageID: "p-7", NotesDivID: "n-3", QuestionID: "q-1", Text: "Dérivée de x² ?",
			}))
		})

		It("publishes a completed event without the answer text", func() {
			post(`{"id":"q-2","question":"?"}`)
			pool.Close()

			Expect(events.events).To(HaveLen(1))
			ev := events.events[0]
			Expect(ev.EventType).To(Equal(eventstream.EventTypeAnswerCompleted))
			Expect(ev.Question.QuestionID).To(Equal("q-2"))
			Expect(ev.Source.Model).To(Equal("CaLlm-course"))
			Expect(ev.Outcome.AnswerChars).To(Equal(len([]rune(asker.answer))))

			raw, err := json.Marshal(ev)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).NotTo(ContainSubstring("dérivée"))
		})

		It("emails the student when asked to", func() {
			post(`{"id":"q-3","question":"?","notify_email":"student@example.org","section":"Analyse 2"}`)
			pool.Close()

			Expect(mail.sent).To(HaveLen(1))
			Expect(mail.sent[0].Recipients).To(Equal([]string{"student@example.org"}))
			Expect(mail.sent[0].Subject).To(Equal(notifier.NewAnswerSubject))
			Expect(mail.sent[0].HTMLBody).To(ContainSubstring("question=q-3"))
		})

		It("sends no email by default", func() {
			post(`{"id":"q-4","question":"?"}`)
			pool.Close()
			Expect(mail.sent).To(BeEmpty())
		})

		It("rejects malformed JSON", func() {
			resp := post(`{"question":`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(asker.asked).To(BeEmpty())
		})

		It("rejects a blank question", func() {
			resp := post(`{"id":"q-5","question":"   "}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body llm.ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(Equal("question is required"))
		})

		DescribeTable("maps failures to status codes",
			func(cause error, status int, kind string) {
				asker.err = cause
				resp := post(`{"id":"q-6","question":"?"}`)
				Expect(resp.StatusCode).To(Equal(status))

				var body llm.ErrorResponse
				decode(resp, &body)
				Expect(body.Error).To(Equal(cause.Error()))

				pool.Close()
				Expect(events.events).To(HaveLen(1))
				Expect(events.events[0].EventType).To(Equal(eventstream.EventTypeAnswerFailed))
				Expect(events.events[0].Outcome.ErrorKind).To(Equal(kind))
			},
			Entry("configuration", fmt.Errorf("%w: api key is empty", streamer.ErrConfiguration), http.StatusInternalServerError, "configuration"),
			Entry("timeout", fmt.Errorf("%w: no answer after 20m0s", streamer.ErrTimeout), http.StatusGatewayTimeout, "timeout"),
			Entry("connection", fmt.Errorf("%w: connection refused", streamer.ErrConnection), http.StatusBadGateway, "connection"),
			Entry("empty", streamer.ErrEmptyResponse, http.StatusBadGateway, "empty_response"),
			Entry("canceled", fmt.Errorf("request aborted by caller: %w", context.Canceled), StatusClientClosedRequest, "canceled"),
		)

		It("reports failures to the admins under the returned error id", func() {
			asker.err = fmt.Errorf("%w: no answer after 20m0s", streamer.ErrTimeout)
			resp := post(`{"id":"q-7","question":"?"}`)
			errorID := resp.Header.Get(HeaderErrorID)
			Expect(errorID).NotTo(BeEmpty())

			pool.Close()
			Expect(mail.sent).To(HaveLen(1))
			Expect(mail.sent[0].Recipients).To(Equal([]string{"admin@example.org"}))
			Expect(mail.sent[0].Subject).To(Equal("[forum-rest-api] ERROR: " + errorID))
		})

		It("does not report caller cancellations", func() {
			asker.err = context.Canceled
			resp := post(`{"id":"q-8","question":"?"}`)
			Expect(resp.Header.Get(HeaderErrorID)).To(BeEmpty())

			pool.Close()
			Expect(mail.sent).To(BeEmpty())
		})
	})

	Describe("CORS", func() {
		It("echoes an allowed origin", func() {
			resp := post(`{"question":"?"}`, "Origin", forumOrigin)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal(forumOrigin))
			Expect(resp.Header.Get("Access-Control-Allow-Credentials")).To(Equal("true"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(Equal("POST, GET, OPTIONS, PUT, DELETE"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(Equal("Content-Type, Authorization"))
			Expect(resp.Header.Get("Access-Control-Max-Age")).To(Equal("86400"))
		})

		It("allows requests without an Origin and adds no CORS headers", func() {
			resp := post(`{"question":"?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})

		It("forbids unknown origins before reaching the handler", func() {
			resp := post(`{"question":"?"}`, "Origin", "https://evil.example")
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

			var body llm.ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(Equal("Forbidden: CORS"))
			Expect(asker.asked).To(BeEmpty())
		})

		It("answers preflight requests with 204", func() {
			req := httptest.NewRequest(http.MethodOptions, "/llm/questions", nil)
			req.Header.Set("Origin", forumOrigin)
			req.Header.Set("Access-Control-Request-Method", "POST")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal(forumOrigin))
		})
	})
})
