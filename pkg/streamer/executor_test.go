package streamer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/logger"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/sse"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/streamer"
)

// chunk renders an OpenAI-style data frame carrying content.
func chunk(content string) string {
	c, err := json.Marshal(content)
	Expect(err).NotTo(HaveOccurred())
	return fmt.Sprintf("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%s},\"finish_reason\":null}]}\n\n", c)
}

// stopChunk renders a data frame carrying content and finish_reason "stop".
func stopChunk(content string) string {
	c, err := json.Marshal(content)
	Expect(err).NotTo(HaveOccurred())
	return fmt.Sprintf("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%s},\"finish_reason\":\"stop\"}]}\n\n", c)
}

const done = "data: [DONE]\n\n"

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk quota exceeded")
}

// upstream is a fake completion service that records what it receives.
type upstream struct {
	*httptest.Server

	hits atomic.Int32

	mu      sync.Mutex
	headers http.Header
	body    []byte
}

func newUpstream(handler func(w http.ResponseWriter, r *http.Request)) *upstream {
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)

		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.headers = r.Header.Clone()
		u.body = body
		u.mu.Unlock()

		handler(w, r)
	}))
	return u
}

// streaming writes frames one by one, flushing after each.
func streaming(frames ...string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}
}

func (u *upstream) endpoint() string {
	return u.URL + "/llm/chat/completions"
}

func newRequest(endpoint string) llm.StreamRequest {
	return llm.StreamRequest{
		Endpoint:   endpoint,
		Model:      "gpt-test",
		PageID:     "page-1",
		NotesDivID: "notes-3",
		QuestionID: "q-42",
		Question:   "What is a limit?",
		APIKey:     "sk-test",
		Timeout:    2 * time.Second,
	}
}

var _ = Describe("Executor", func() {
	var (
		server *upstream
		exec   *streamer.Executor
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		exec = streamer.New(streamer.Config{Logger: logger.Nop()})
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	Describe("Execute", func() {
		Context("with a well-formed stream", func() {
			BeforeEach(func() {
				server = newUpstream(streaming(chunk("Hel"), chunk("lo"), done))
			})

			It("aggregates the fragments into one answer", func() {
				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("Hello"))
				Expect(answer.Elapsed).To(BeNumerically(">", 0))
			})

			It("sends the bearer credential and correlation headers", func() {
				_, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())

				server.mu.Lock()
				defer server.mu.Unlock()
				Expect(server.headers.Get("Authorization")).To(Equal("Bearer sk-test"))
				Expect(server.headers.Get("Content-Type")).To(Equal("application/json"))
				Expect(server.headers.Get("model")).To(Equal("gpt-test"))
				Expect(server.headers.Get("id")).To(Equal("q-42"))
				Expect(server.headers.Get("idpage")).To(Equal("page-1"))
				Expect(server.headers.Get("idnotesdiv")).To(Equal("notes-3"))
				Expect(server.headers.Get("User-Agent")).To(HavePrefix("forum-rest-api/"))
			})

			It("sends a single user message", func() {
				_, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())

				server.mu.Lock()
				defer server.mu.Unlock()
				Expect(server.body).To(MatchJSON(`{
					"model": "gpt-test",
					"messages": [{"role": "user", "content": "What is a limit?"}]
				}`))
			})

			It("copies the raw stream to a transcript writer", func() {
				transcript := &bytes.Buffer{}
				_, err := exec.Execute(ctx, newRequest(server.endpoint()), streamer.WithTranscript(transcript))
				Expect(err).NotTo(HaveOccurred())
				Expect(transcript.String()).To(Equal(chunk("Hel") + chunk("lo") + done))
			})
		})

		Context("with heartbeats and an undecodable frame", func() {
			It("skips both and logs the bad frame exactly once", func() {
				server = newUpstream(streaming("\n", "data: not-json\n\n", chunk("Hi"), done))

				logs := &bytes.Buffer{}
				exec = streamer.New(streamer.Config{
					Logger: logger.New(logger.WithJSON(true), logger.WithWriter(logs), logger.WithLevel(slog.LevelWarn)),
				})

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("Hi"))
				Expect(strings.Count(logs.String(), `"msg":"skipping malformed frame"`)).To(Equal(1))
				Expect(logs.String()).To(ContainSubstring("not-json"))
			})

			It("ignores lines without the data prefix", func() {
				server = newUpstream(streaming(": keep-alive\n", "event: message\n", chunk("ok"), done))

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("ok"))
			})
		})

		Context("with a frame over the size limit", func() {
			It("skips it and keeps the content around it", func() {
				huge := "data: " + strings.Repeat("x", 2*sse.MaxFrameSize) + "\n\n"
				server = newUpstream(streaming(chunk("Hi"), huge, chunk(" there"), done))

				logs := &bytes.Buffer{}
				exec = streamer.New(streamer.Config{
					Logger: logger.New(logger.WithJSON(true), logger.WithWriter(logs), logger.WithLevel(slog.LevelWarn)),
				})

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("Hi there"))
				Expect(logs.String()).To(ContainSubstring("frame exceeds maximum size"))
			})
		})

		Context("when the transcript writer fails", func() {
			It("still returns the answer and warns once", func() {
				server = newUpstream(streaming(chunk("Hel"), chunk("lo"), done))

				logs := &bytes.Buffer{}
				exec = streamer.New(streamer.Config{
					Logger: logger.New(logger.WithJSON(true), logger.WithWriter(logs), logger.WithLevel(slog.LevelWarn)),
				})

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()), streamer.WithTranscript(brokenWriter{}))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("Hello"))
				Expect(strings.Count(logs.String(), `"msg":"transcript write failed, no longer recording the stream"`)).To(Equal(1))
				Expect(logs.String()).To(ContainSubstring("disk quota exceeded"))
			})
		})

		Context("when the stream ends", func() {
			It("stops at finish_reason stop and keeps that frame's content", func() {
				server = newUpstream(streaming(chunk("Hel"), stopChunk("lo"), chunk(" IGNORED"), done))

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("Hello"))
			})

			It("accepts a stream closed without the sentinel", func() {
				server = newUpstream(streaming(chunk("no "), chunk("sentinel")))

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("no sentinel"))
			})

			It("ignores frames after the sentinel", func() {
				server = newUpstream(streaming(chunk("first"), done, chunk("second")))

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("first"))
			})

			It("preserves fragment order across many frames", func() {
				var frames []string
				var want strings.Builder
				for i := range 200 {
					frames = append(frames, chunk(fmt.Sprintf("%d,", i)))
					fmt.Fprintf(&want, "%d,", i)
				}
				server = newUpstream(streaming(append(frames, done)...))

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal(want.String()))
			})

			It("trims surrounding whitespace but keeps inner spacing", func() {
				server = newUpstream(streaming(chunk("  "), chunk("Hello"), chunk(",  world"), chunk(" \n"), done))

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("Hello,  world"))
			})
		})

		Context("when no usable text arrives", func() {
			DescribeTable("returns ErrEmptyResponse",
				func(frames ...string) {
					server = newUpstream(streaming(frames...))

					answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
					Expect(answer).To(BeNil())
					Expect(err).To(MatchError(streamer.ErrEmptyResponse))
					Expect(err).NotTo(MatchError(streamer.ErrConnection))
				},
				Entry("sentinel first", done),
				Entry("immediate close"),
				Entry("whitespace only", chunk("   "), chunk("\n"), done),
				Entry("only malformed frames", "data: {oops\n\n", "garbage\n", done),
				Entry("deltas without content", "data: {\"choices\":[{\"delta\":{}}]}\n\n", done),
				Entry("empty choices", "data: {\"choices\":[]}\n\n", done),
			)
		})

		Context("when the service answers with a non-success status", func() {
			It("reports an empty response carrying the status", func() {
				server = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(w, `{"error":"upstream exploded"}`)
				})

				_, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).To(MatchError(streamer.ErrEmptyResponse))
				Expect(err.Error()).To(ContainSubstring("HTTP status 500"))
			})

			It("still reads a streamed body", func() {
				server = newUpstream(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
					streaming(chunk("degraded"), done)(w, r)
				})

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(err).NotTo(HaveOccurred())
				Expect(answer.Text).To(Equal("degraded"))
			})
		})

		Context("with an invalid configuration", func() {
			BeforeEach(func() {
				server = newUpstream(streaming(chunk("unreachable"), done))
			})

			DescribeTable("fails before any network call",
				func(mutate func(*llm.StreamRequest)) {
					req := newRequest(server.endpoint())
					mutate(&req)

					answer, err := exec.Execute(ctx, req)
					Expect(answer).To(BeNil())
					Expect(err).To(MatchError(streamer.ErrConfiguration))
					Expect(server.hits.Load()).To(BeZero())
				},
				Entry("zero timeout", func(r *llm.StreamRequest) { r.Timeout = 0 }),
				Entry("negative timeout", func(r *llm.StreamRequest) { r.Timeout = -time.Second }),
				Entry("missing API key", func(r *llm.StreamRequest) { r.APIKey = "" }),
				Entry("blank API key", func(r *llm.StreamRequest) { r.APIKey = "   " }),
				Entry("missing model", func(r *llm.StreamRequest) { r.Model = "" }),
				Entry("missing endpoint", func(r *llm.StreamRequest) { r.Endpoint = "" }),
				Entry("relative endpoint", func(r *llm.StreamRequest) { r.Endpoint = "/llm/chat/completions" }),
				Entry("unsupported scheme", func(r *llm.StreamRequest) { r.Endpoint = "ftp://example.org/llm" }),
			)
		})

		Context("when the service cannot be reached", func() {
			It("returns ErrConnection for a refused connection", func() {
				closed := newUpstream(streaming())
				endpoint := closed.endpoint()
				closed.Close()

				_, err := exec.Execute(ctx, newRequest(endpoint))
				Expect(err).To(MatchError(streamer.ErrConnection))
				Expect(err).NotTo(MatchError(streamer.ErrTimeout))
			})

			It("returns ErrConnection when the stream breaks mid-body", func() {
				server = newUpstream(func(w http.ResponseWriter, _ *http.Request) {
					hj, ok := w.(http.Hijacker)
					Expect(ok).To(BeTrue())
					conn, buf, err := hj.Hijack()
					Expect(err).NotTo(HaveOccurred())

					payload := chunk("partial")
					fmt.Fprintf(buf, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nTransfer-Encoding: chunked\r\n\r\n")
					fmt.Fprintf(buf, "%x\r\n%s\r\n", len(payload), payload)
					Expect(buf.Flush()).To(Succeed())
					conn.Close()
				})

				answer, err := exec.Execute(ctx, newRequest(server.endpoint()))
				Expect(answer).To(BeNil())
				Expect(err).To(MatchError(streamer.ErrConnection))
				Expect(err).NotTo(MatchError(streamer.ErrEmptyResponse))
			})
		})

		Context("when the deadline passes", func() {
			It("times out a stalled stream and disconnects", func() {
				disconnected := make(chan struct{})
				server = newUpstream(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "text/event-stream")
					w.WriteHeader(http.StatusOK)
					w.(http.Flusher).Flush()

					select {
					case <-r.Context().Done():
						close(disconnected)
					case <-time.After(10 * time.Second):
					}
				})

				req := newRequest(server.endpoint())
				req.Timeout = 200 * time.Millisecond

				start := time.Now()
				answer, err := exec.Execute(ctx, req)
				Expect(answer).To(BeNil())
				Expect(err).To(MatchError(streamer.ErrTimeout))
				Expect(err).NotTo(MatchError(streamer.ErrConnection))
				Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
				Eventually(disconnected).WithTimeout(2 * time.Second).Should(BeClosed())
			})

			It("times out when headers never arrive", func() {
				server = newUpstream(func(_ http.ResponseWriter, r *http.Request) {
					select {
					case <-r.Context().Done():
					case <-time.After(10 * time.Second):
					}
				})

				req := newRequest(server.endpoint())
				req.Timeout = 150 * time.Millisecond

				_, err := exec.Execute(ctx, req)
				Expect(err).To(MatchError(streamer.ErrTimeout))
			})

			It("times out a stream of heartbeats only", func() {
				server = newUpstream(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "text/event-stream")
					flusher := w.(http.Flusher)
					ticker := time.NewTicker(10 * time.Millisecond)
					defer ticker.Stop()

					for {
						select {
						case <-r.Context().Done():
							return
						case <-ticker.C:
							fmt.Fprint(w, "\n")
							flusher.Flush()
						}
					}
				})

				req := newRequest(server.endpoint())
				req.Timeout = 150 * time.Millisecond

				_, err := exec.Execute(ctx, req)
				Expect(err).To(MatchError(streamer.ErrTimeout))
			})

			It("discards partial text gathered before the deadline", func() {
				server = newUpstream(func(w http.ResponseWriter, r *http.Request) {
					streaming(chunk("partial answer"))(w, r)
					<-r.Context().Done()
				})

				req := newRequest(server.endpoint())
				req.Timeout = 150 * time.Millisecond

				answer, err := exec.Execute(ctx, req)
				Expect(answer).To(BeNil())
				Expect(err).To(MatchError(streamer.ErrTimeout))
			})
		})

		Context("when the caller cancels", func() {
			It("returns context.Canceled instead of a timeout", func() {
				server = newUpstream(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
					w.(http.Flusher).Flush()
					<-r.Context().Done()
				})

				cctx, cancel := context.WithCancel(ctx)
				time.AfterFunc(50*time.Millisecond, cancel)

				_, err := exec.Execute(cctx, newRequest(server.endpoint()))
				Expect(errors.Is(err, context.Canceled)).To(BeTrue())
				Expect(err).NotTo(MatchError(streamer.ErrTimeout))
			})
		})

		Context("with concurrent calls", func() {
			It("keeps each answer isolated", func() {
				server = newUpstream(func(w http.ResponseWriter, r *http.Request) {
					id := r.Header.Get("id")
					streaming(chunk("answer "), chunk("for "), chunk(id), done)(w, r)
				})

				const callers = 16
				results := make([]string, callers)
				var wg sync.WaitGroup
				for i := range callers {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()

						req := newRequest(server.endpoint())
						req.QuestionID = fmt.Sprintf("q-%d", i)

						answer, err := exec.Execute(ctx, req)
						Expect(err).NotTo(HaveOccurred())
						results[i] = answer.Text
					}()
				}
				wg.Wait()

				for i, text := range results {
					Expect(text).To(Equal(fmt.Sprintf("answer for q-%d", i)))
				}
			})
		})
	})

	Describe("Validate", func() {
		It("accepts a complete request", func() {
			Expect(streamer.Validate(newRequest("https://example.org/llm/chat/completions"))).To(Succeed())
		})
	})
})
