package provider_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/llm/provider"
)

var _ = Describe("New", func() {
	It("creates the openai provider", func() {
		p, err := provider.New(provider.OpenAI)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("openai"))
	})

	It("rejects unknown provider types", func() {
		_, err := provider.New("carrier-pigeon")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown provider type"))
		Expect(err.Error()).To(ContainSubstring("openai"))
	})

	It("lists supported providers", func() {
		Expect(provider.SupportedProviders()).To(ConsistOf(provider.OpenAI))
	})
})
