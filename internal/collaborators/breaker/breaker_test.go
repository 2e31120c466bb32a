package breaker

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
	"github.com/fourthplaces/rootsignal/internal/collaborators"
)

func TestBreaker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Breaker Suite")
}

type fakeIngestor struct {
	err error
}

func (f *fakeIngestor) Discover(context.Context, collaborators.DiscoverConfig) ([]collaborators.RawPage, error) {
	return nil, nil
}

func (f *fakeIngestor) FetchSpecific(context.Context, []string) ([]collaborators.RawPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []collaborators.RawPage{{URL: "https://example.com"}}, nil
}

var _ = Describe("Ingestor breaker", func() {
	It("passes through a successful call", func() {
		ing := WrapIngestor(&fakeIngestor{})
		pages, err := ing.FetchSpecific(context.Background(), []string{"https://example.com"})
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(HaveLen(1))
	})

	It("trips open after consecutive failures and fails fast as transient", func() {
		ing := WrapIngestor(&fakeIngestor{err: errors.New("boom")})

		for i := 0; i < 3; i++ {
			_, err := ing.FetchSpecific(context.Background(), []string{"https://example.com"})
			Expect(err).To(HaveOccurred())
		}

		_, err := ing.FetchSpecific(context.Background(), []string{"https://example.com"})
		Expect(err).To(HaveOccurred())
		Expect(apperrors.IsType(err, apperrors.ErrorTypeTransient)).To(BeTrue())
	})
})
