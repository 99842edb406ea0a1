package openai_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm/provider"
	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI Provider", func() {
	var p provider.Provider

	BeforeEach(func() {
		p = openai.New()
	})

	Describe("Name", func() {
		It("returns 'openai'", func() {
			Expect(p.Name()).To(Equal("openai"))
		})
	})

	Describe("EncodeRequest", func() {
		It("encodes the model and a single user message", func() {
			body, err := p.EncodeRequest(llm.StreamRequest{
				Endpoint:   "http://example.invalid",
				Model:      "CaLlm-course",
				PageID:     "page-1",
				NotesDivID: "div-2",
				QuestionID: "42",
				Question:   "What is a limit?",
				APIKey:     "secret",
				Timeout:    time.Minute,
			})
			Expect(err).NotTo(HaveOccurred())

			var parsed map[string]any
			Expect(json.Unmarshal(body, &parsed)).To(Succeed())
			Expect(parsed).To(HaveLen(2))
			Expect(parsed["model"]).To(Equal("CaLlm-course"))

			messages := parsed["messages"].([]any)
			Expect(messages).To(HaveLen(1))
			msg := messages[0].(map[string]any)
			Expect(msg["role"]).To(Equal("user"))
			Expect(msg["content"]).To(Equal("What is a limit?"))
		})

		It("never leaks the credential or correlation ids into the body", func() {
			body, err := p.EncodeRequest(llm.StreamRequest{Model: "m", Question: "q", APIKey: "secret", PageID: "page-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).NotTo(ContainSubstring("secret"))
			Expect(string(body)).NotTo(ContainSubstring("page-1"))
		})
	})

	Describe("ParseStreamChunk", func() {
		It("extracts the content fragment", func() {
			d, err := p.ParseStreamChunk([]byte(`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Content).NotTo(BeNil())
			Expect(*d.Content).To(Equal("Hel"))
			Expect(d.FinishReason).To(BeNil())
		})

		It("extracts the finish reason alongside content", func() {
			d, err := p.ParseStreamChunk([]byte(`{"choices":[{"delta":{"content":"!"},"finish_reason":"stop"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(*d.Content).To(Equal("!"))
			Expect(d.IsStop()).To(BeTrue())
		})

		It("treats null fields as absent", func() {
			d, err := p.ParseStreamChunk([]byte(`{"choices":[{"delta":{"content":null},"finish_reason":null}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Content).To(BeNil())
			Expect(d.FinishReason).To(BeNil())
		})

		It("only reads the first choice", func() {
			d, err := p.ParseStreamChunk([]byte(`{"choices":[{"delta":{"content":"a"}},{"delta":{"content":"b"}}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(*d.Content).To(Equal("a"))
		})

		DescribeTable("objects lacking the nested fields decode to an empty delta",
			func(payload string) {
				d, err := p.ParseStreamChunk([]byte(payload))
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Content).To(BeNil())
				Expect(d.FinishReason).To(BeNil())
			},
			Entry("empty object", `{}`),
			Entry("empty choices", `{"choices":[]}`),
			Entry("role-only delta", `{"choices":[{"delta":{"role":"assistant"}}]}`),
			Entry("usage-only chunk", `{"choices":[],"usage":{"prompt_tokens":3,"completion_tokens":5}}`),
		)

		DescribeTable("invalid payloads fail to decode",
			func(payload string) {
				d, err := p.ParseStreamChunk([]byte(payload))
				Expect(err).To(HaveOccurred())
				Expect(d).To(BeNil())
			},
			Entry("plain text", `not-json`),
			Entry("truncated object", `{"choices":[{"delta":{"content":"Hel`),
			Entry("choices is not an array", `{"choices":"nope"}`),
			Entry("content is not a string", `{"choices":[{"delta":{"content":7}}]}`),
		)
	})
})
