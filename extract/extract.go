// Package extract turns a source URL into clean text for ingestion.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sweetpotato0/notelm/pkg/errors"
	"github.com/sweetpotato0/notelm/pkg/logging"
)

// ExtractedContent is the result of extracting one URL.
type ExtractedContent struct {
	URL         string
	Title       string
	Content     string
	ContentHash string
	WordCount   int
}

// NewExtractedContent fills in the derived hash and word count.
func NewExtractedContent(url, title, content string) ExtractedContent {
	sum := sha256.Sum256([]byte(content))
	return ExtractedContent{
		URL:         url,
		Title:       title,
		Content:     content,
		ContentHash: hex.EncodeToString(sum[:]),
		WordCount:   len(strings.Fields(content)),
	}
}

// Extractor converts a URL into extracted content.
type Extractor interface {
	Extract(ctx context.Context, url string) (ExtractedContent, error)
	Supports(url string) bool
}

// Composite tries an ordered list of extractors, skipping those that do
// not support the URL and falling through on upstream failures.
type Composite struct {
	extractors []Extractor
}

// NewComposite creates a composite over the given extractors, in order.
func NewComposite(extractors ...Extractor) *Composite {
	return &Composite{extractors: extractors}
}

// Supports reports whether any member supports the URL.
func (c *Composite) Supports(url string) bool {
	for _, e := range c.extractors {
		if e.Supports(url) {
			return true
		}
	}
	return false
}

// Extract returns the first successful extraction. When every member
// fails, the aggregated messages surface as one external-service error.
func (c *Composite) Extract(ctx context.Context, url string) (ExtractedContent, error) {
	logger := logging.WithComponent("extract")
	var failures []string
	for _, e := range c.extractors {
		if !e.Supports(url) {
			continue
		}
		content, err := e.Extract(ctx, url)
		if err == nil {
			return content, nil
		}
		logger.Warn("extractor failed, trying next", "url", url, "error", err)
		failures = append(failures, err.Error())
	}
	if len(failures) == 0 {
		return ExtractedContent{}, errors.ExternalServicef("no extractor supports %s", url)
	}
	return ExtractedContent{}, errors.ExternalServicef("all extractors failed for %s: %s", url, strings.Join(failures, "; "))
}

var _ Extractor = (*Composite)(nil)

func isHTTP(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
