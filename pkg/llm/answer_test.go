package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm"
)

func strPtr(s string) *string { return &s }

var _ = Describe("Accumulator", func() {
	var acc *llm.Accumulator

	BeforeEach(func() {
		acc = &llm.Accumulator{}
	})

	It("concatenates fragments in arrival order without separators", func() {
		for _, frag := range []string{"Hel", "lo", ", ", "world"} {
			Expect(acc.Apply(llm.Delta{Content: strPtr(frag)})).To(Equal(llm.SignalContinue))
		}

		Expect(acc.Text()).To(Equal("Hello, world"))
		Expect(acc.Fragments()).To(Equal(4))
	})

	It("keeps whitespace and repeated fragments verbatim", func() {
		acc.Apply(llm.Delta{Content: strPtr("  a")})
		acc.Apply(llm.Delta{Content: strPtr("  a")})
		acc.Apply(llm.Delta{Content: strPtr("\n")})

		Expect(acc.Text()).To(Equal("  a  a\n"))
	})

	It("treats a delta with no fields as a no-op", func() {
		Expect(acc.Apply(llm.Delta{})).To(Equal(llm.SignalContinue))
		Expect(acc.Text()).To(BeEmpty())
		Expect(acc.Fragments()).To(BeZero())
	})

	It("counts an empty content fragment as observed", func() {
		acc.Apply(llm.Delta{Content: strPtr("")})
		Expect(acc.Fragments()).To(Equal(1))
		Expect(acc.Text()).To(BeEmpty())
	})

	It("signals stop on finish_reason stop and keeps that frame's content", func() {
		acc.Apply(llm.Delta{Content: strPtr("Hi")})
		sig := acc.Apply(llm.Delta{Content: strPtr("!"), FinishReason: strPtr("stop")})

		Expect(sig).To(Equal(llm.SignalStop))
		Expect(acc.Text()).To(Equal("Hi!"))
	})

	DescribeTable("other finish reasons keep the loop running",
		func(reason string) {
			Expect(acc.Apply(llm.Delta{FinishReason: strPtr(reason)})).To(Equal(llm.SignalContinue))
		},
		Entry("length", "length"),
		Entry("tool_calls", "tool_calls"),
		Entry("empty", ""),
		Entry("upper case STOP", "STOP"),
	)
})

var _ = Describe("Delta", func() {
	It("reports IsStop only for the literal stop reason", func() {
		Expect(llm.Delta{FinishReason: strPtr("stop")}.IsStop()).To(BeTrue())
		Expect(llm.Delta{FinishReason: strPtr("length")}.IsStop()).To(BeFalse())
		Expect(llm.Delta{}.IsStop()).To(BeFalse())
	})
})
