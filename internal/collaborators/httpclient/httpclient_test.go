package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fourthplaces/rootsignal/internal/collaborators"
)

func TestHTTPClient(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "HTTP Client Suite")
}

var _ = Describe("Ingestor", func() {
	It("fetches each URL in order and fills Content/ContentType", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>hello</html>"))
		}))
		defer srv.Close()

		ing := NewIngestor(time.Second, "test-agent/1.0")
		pages, err := ing.FetchSpecific(context.Background(), []string{srv.URL})
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(HaveLen(1))
		Expect(pages[0].Content).To(Equal("<html>hello</html>"))
		Expect(*pages[0].ContentType).To(Equal("text/html"))
	})

	It("returns a transient error on a 5xx response", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		ing := NewIngestor(time.Second, "test-agent/1.0")
		_, err := ing.FetchSpecific(context.Background(), []string{srv.URL})
		Expect(err).To(HaveOccurred())
	})

	It("errors on Discover, which the HTTP ingestor doesn't support", func() {
		ing := NewIngestor(time.Second, "test-agent/1.0")
		_, err := ing.Discover(context.Background(), collaborators.DiscoverConfig{Query: "x"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Extractor", func() {
	It("posts content/source_url/trust and decodes the signal candidates", func() {
		var gotReq map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&gotReq)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"signals":[{"node_type":"tension","title":"t","summary":"s"}]}`))
		}))
		defer srv.Close()

		ex := NewExtractor(srv.URL, time.Second)
		out, err := ex.Extract(context.Background(), "page body", "https://example.com/a", 0.8)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Signals).To(HaveLen(1))
		Expect(out.Signals[0].Title).To(Equal("t"))
		Expect(gotReq["source_url"]).To(Equal("https://example.com/a"))
		Expect(gotReq["trust"]).To(Equal(0.8))
	})

	It("returns an extraction error on a 4xx response", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		ex := NewExtractor(srv.URL, time.Second)
		_, err := ex.Extract(context.Background(), "x", "https://example.com", 0.5)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Embedder", func() {
	It("embeds a single text via EmbedBatch under the hood", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
		}))
		defer srv.Close()

		emb := NewEmbedder(srv.URL, time.Second)
		vec, err := emb.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3}))
	})

	It("embeds a batch of texts, one vector per input", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embeddings":[[1,0,0],[0,1,0]]}`))
		}))
		defer srv.Close()

		emb := NewEmbedder(srv.URL, time.Second)
		vecs, err := emb.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(HaveLen(2))
	})

	It("errors when the embedding service returns no vectors for a single Embed call", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}))
		defer srv.Close()

		emb := NewEmbedder(srv.URL, time.Second)
		_, err := emb.Embed(context.Background(), "hello")
		Expect(err).To(HaveOccurred())
	})
})
