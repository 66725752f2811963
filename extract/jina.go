package extract

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

const jinaReaderBase = "https://r.jina.ai/"

// JinaExtractor reads a URL through the Jina reader endpoint, which
// returns the page as plain text with a small metadata preamble.
type JinaExtractor struct {
	apiKey string
	base   string
	client *http.Client
}

// JinaOption customizes the Jina extractor.
type JinaOption func(*JinaExtractor)

// WithJinaBaseURL overrides the reader endpoint; mainly for tests.
func WithJinaBaseURL(base string) JinaOption {
	return func(e *JinaExtractor) {
		if base != "" {
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			e.base = base
		}
	}
}

// WithJinaHTTPClient overrides the HTTP client.
func WithJinaHTTPClient(client *http.Client) JinaOption {
	return func(e *JinaExtractor) {
		if client != nil {
			e.client = client
		}
	}
}

// NewJinaExtractor creates the network-based primary extractor. The API
// key is optional; without it the reader applies its anonymous quota.
func NewJinaExtractor(apiKey string, opts ...JinaOption) *JinaExtractor {
	e := &JinaExtractor{
		apiKey: apiKey,
		base:   jinaReaderBase,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports accepts any http(s) URL.
func (e *JinaExtractor) Supports(url string) bool {
	return isHTTP(url)
}

// Extract fetches base + url and parses the reader preamble
// ("Title: ..." lines before the content body).
func (e *JinaExtractor) Extract(ctx context.Context, url string) (ExtractedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+url, nil)
	if err != nil {
		return ExtractedContent{}, errors.ExternalServicef("jina: build request for %s: %v", url, err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Return-Format", "text")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return ExtractedContent{}, errors.ExternalServicef("jina: fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ExtractedContent{}, errors.ExternalServicef("jina: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExtractedContent{}, errors.ExternalServicef("jina: read %s: %v", url, err)
	}

	title, content := parseReaderBody(string(body))
	if strings.TrimSpace(content) == "" {
		return ExtractedContent{}, errors.ExternalServicef("jina: empty content for %s", url)
	}
	return NewExtractedContent(url, title, content), nil
}

// parseReaderBody splits the optional reader preamble from the text.
// The preamble is a run of "Key: value" lines terminated by a blank
// line; only Title is kept.
func parseReaderBody(body string) (title, content string) {
	lines := strings.Split(body, "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			// Not a preamble at all; the whole body is content.
			return "", body
		}
		if strings.EqualFold(strings.TrimSpace(key), "Title") {
			title = strings.TrimSpace(value)
		}
	}
	content = strings.TrimSpace(strings.Join(lines[i:], "\n"))
	if content == "" {
		return "", body
	}
	return title, content
}

var _ Extractor = (*JinaExtractor)(nil)
