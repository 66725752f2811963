package extract

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// LocalExtractor fetches a page directly and strips it down to readable
// text with goquery. It is the offline fallback behind the reader API.
type LocalExtractor struct {
	client    *http.Client
	userAgent string
}

// LocalOption customizes the local extractor.
type LocalOption func(*LocalExtractor)

// WithLocalHTTPClient overrides the HTTP client.
func WithLocalHTTPClient(client *http.Client) LocalOption {
	return func(e *LocalExtractor) {
		if client != nil {
			e.client = client
		}
	}
}

// NewLocalExtractor creates the fallback extractor.
func NewLocalExtractor(opts ...LocalOption) *LocalExtractor {
	e := &LocalExtractor{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: "NTLMCrawler/1.0",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports accepts any http(s) URL.
func (e *LocalExtractor) Supports(url string) bool {
	return isHTTP(url)
}

// Extract downloads the page and reduces it to title plus visible text.
func (e *LocalExtractor) Extract(ctx context.Context, url string) (ExtractedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ExtractedContent{}, errors.ExternalServicef("local: build request for %s: %v", url, err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return ExtractedContent{}, errors.ExternalServicef("local: fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ExtractedContent{}, errors.ExternalServicef("local: fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ExtractedContent{}, errors.ExternalServicef("local: parse %s: %v", url, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	// Boilerplate elements carry no article text.
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	})

	content := strings.TrimSpace(b.String())
	if content == "" {
		// Pages without block markup still count when the body has text.
		content = strings.TrimSpace(root.Text())
	}
	if content == "" {
		return ExtractedContent{}, errors.ExternalServicef("local: no text content at %s", url)
	}
	content = blankRuns.ReplaceAllString(content, "\n\n")

	return NewExtractedContent(url, title, content), nil
}

var _ Extractor = (*LocalExtractor)(nil)
