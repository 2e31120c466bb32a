// Package httpclient is the only concrete collaborators.Ingestor/Extractor/
// Embedder implementation this repo ships. spec.md §6.2 treats all three as
// summarized interfaces — the actual LLM and embedding models are out of
// scope (Non-goals: no bundled LLM client) — so Extractor and Embedder here
// are thin JSON-over-HTTP clients to an externally configured service,
// grounded on kubernaut's own HTTPDataStorageClient shape
// (test/unit/audit/http_client_test.go: constructor takes a base URL and an
// *http.Client, every call POSTs JSON and decodes a JSON response).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fourthplaces/rootsignal/internal/apperrors"
	"github.com/fourthplaces/rootsignal/internal/collaborators"
)

// Ingestor fetches pages over plain HTTP GET. It does not render
// JavaScript or paginate a social feed; Discover (open-ended search) is
// unsupported since spec.md's examples for it are all platform-specific
// search APIs out of scope for this minimal client.
type Ingestor struct {
	client    *http.Client
	userAgent string
}

func NewIngestor(timeout time.Duration, userAgent string) *Ingestor {
	return &Ingestor{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

func (i *Ingestor) Discover(ctx context.Context, cfg collaborators.DiscoverConfig) ([]collaborators.RawPage, error) {
	return nil, apperrors.New(apperrors.ErrorTypeInternal, "discover is not supported by the HTTP ingestor")
}

func (i *Ingestor) FetchSpecific(ctx context.Context, urls []string) ([]collaborators.RawPage, error) {
	pages := make([]collaborators.RawPage, 0, len(urls))
	for _, u := range urls {
		page, err := i.fetchOne(ctx, u)
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (i *Ingestor) fetchOne(ctx context.Context, url string) (collaborators.RawPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return collaborators.RawPage{}, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "build request")
	}
	req.Header.Set("User-Agent", i.userAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return collaborators.RawPage{}, apperrors.Wrap(err, apperrors.ErrorTypeTransient, "fetch "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return collaborators.RawPage{}, apperrors.Newf(apperrors.ErrorTypeTransient, "fetch %s: status %d", url, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return collaborators.RawPage{}, apperrors.Newf(apperrors.ErrorTypeValidation, "fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return collaborators.RawPage{}, apperrors.Wrap(err, apperrors.ErrorTypeTransient, "read body for "+url)
	}
	contentType := resp.Header.Get("Content-Type")
	return collaborators.RawPage{
		URL:         url,
		Content:     string(body),
		ContentType: &contentType,
	}, nil
}

// Extractor posts page content to an external extraction service and
// decodes its signal candidates.
type Extractor struct {
	client  *http.Client
	baseURL string
}

func NewExtractor(baseURL string, timeout time.Duration) *Extractor {
	return &Extractor{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type extractRequest struct {
	Content   string  `json:"content"`
	SourceURL string  `json:"source_url"`
	Trust     float64 `json:"trust"`
}

func (e *Extractor) Extract(ctx context.Context, content, sourceURL string, trust float64) (collaborators.ExtractedSignals, error) {
	var out collaborators.ExtractedSignals
	reqBody, err := json.Marshal(extractRequest{Content: content, SourceURL: sourceURL, Trust: trust})
	if err != nil {
		return out, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal extract request")
	}

	respBody, err := postJSON(ctx, e.client, e.baseURL+"/extract", reqBody, &out)
	if err != nil {
		return out, err
	}
	out.RawResponse = string(respBody)
	return out, nil
}

// Embedder posts text to an external embedding service.
type Embedder struct {
	client  *http.Client
	baseURL string
}

func NewEmbedder(baseURL string, timeout time.Duration) *Embedder {
	return &Embedder{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeExtraction, "embedding service returned no vectors")
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal embed request")
	}

	var out embedResponse
	if _, err := postJSON(ctx, e.client, e.baseURL+"/embed", body, &out); err != nil {
		return nil, err
	}
	return out.Embeddings, nil
}

// postJSON POSTs body to url, decodes the response into out, and returns
// the raw response bytes so callers that need to retain it (the Extractor,
// for replay per spec.md §4.6) don't have to re-marshal out.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeTransient, fmt.Sprintf("post %s", url))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeTransient, "read response from "+url)
	}

	if resp.StatusCode >= 500 {
		return nil, apperrors.Newf(apperrors.ErrorTypeTransient, "post %s: status %d", url, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, apperrors.Newf(apperrors.ErrorTypeExtraction, "post %s: status %d", url, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeExtraction, "decode response from "+url)
	}
	return respBody, nil
}
