// Package crawl runs bounded breadth-first crawls that feed the
// ingestion pipeline.
package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

const (
	userAgent    = "NTLMCrawler/1.0"
	fetchTimeout = 30 * time.Second
)

// Link is one same-domain anchor found on a page.
type Link struct {
	URL        string
	AnchorText string
}

// LinkDiscoverer fetches a page and returns its filtered outbound links.
type LinkDiscoverer interface {
	DiscoverLinks(ctx context.Context, pageURL, domain, includePattern, excludePattern string) ([]Link, error)
}

// HTTPLinkDiscoverer fetches pages over HTTP and parses anchors.
type HTTPLinkDiscoverer struct {
	client *http.Client
}

// NewHTTPLinkDiscoverer creates a discoverer with the standard timeout.
func NewHTTPLinkDiscoverer() *HTTPLinkDiscoverer {
	return &HTTPLinkDiscoverer{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

var _ LinkDiscoverer = (*HTTPLinkDiscoverer)(nil)

// skippedSchemes are href prefixes that never yield crawlable pages.
var skippedSchemes = []string{"mailto:", "javascript:", "tel:", "ftp:", "data:"}

// DiscoverLinks fetches pageURL and returns its anchors, normalized and
// filtered: resolved against the page, fragment dropped, deduplicated
// first-wins, restricted to the exact domain, then run through the
// optional include and exclude patterns.
func (d *HTTPLinkDiscoverer) DiscoverLinks(ctx context.Context, pageURL, domain, includePattern, excludePattern string) ([]Link, error) {
	var include, exclude *regexp.Regexp
	var err error
	if includePattern != "" {
		if include, err = regexp.Compile(includePattern); err != nil {
			return nil, errors.Validationf("bad include pattern %q: %v", includePattern, err)
		}
	}
	if excludePattern != "" {
		if exclude, err = regexp.Compile(excludePattern); err != nil {
			return nil, errors.Validationf("bad exclude pattern %q: %v", excludePattern, err)
		}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, errors.Validationf("bad page url %q: %v", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.ExternalServicef("fetch %s: %v", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.ExternalServicef("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.ExternalServicef("parse %s: %v", pageURL, err)
	}

	seen := make(map[string]struct{})
	var links []Link
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		for _, scheme := range skippedSchemes {
			if strings.HasPrefix(lower, scheme) {
				return
			}
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		normalized := resolved.String()

		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}

		if resolved.Host != domain {
			return
		}
		if include != nil && !include.MatchString(normalized) {
			return
		}
		if exclude != nil && exclude.MatchString(normalized) {
			return
		}
		links = append(links, Link{
			URL:        normalized,
			AnchorText: strings.TrimSpace(sel.Text()),
		})
	})
	return links, nil
}
