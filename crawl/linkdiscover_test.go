package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

func servePage(t *testing.T, html string, wantUA string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantUA != "" && r.Header.Get("User-Agent") != wantUA {
			t.Errorf("user agent = %q, want %q", r.Header.Get("User-Agent"), wantUA)
		}
		fmt.Fprint(w, html)
	}))
}

func TestDiscoverLinksFiltersAndNormalizes(t *testing.T) {
	html := `<html><body>
		<a href="/relative">Relative</a>
		<a href="page2#section">Fragment dropped</a>
		<a href="#top">Fragment only</a>
		<a href="">Empty</a>
		<a href="mailto:a@b.c">Mail</a>
		<a href="javascript:void(0)">JS</a>
		<a href="tel:+123">Tel</a>
		<a href="ftp://ex.com/f">FTP</a>
		<a href="data:text/plain,x">Data</a>
		<a href="https://other.example/offsite">Offsite</a>
		<a href="/relative">Duplicate</a>
		<a href="/keep?q=1">Query preserved</a>
	</body></html>`

	srv := servePage(t, html, userAgent)
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	d := NewHTTPLinkDiscoverer()
	links, err := d.DiscoverLinks(context.Background(), srv.URL+"/start", u.Host, "", "")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	want := []string{
		srv.URL + "/relative",
		srv.URL + "/page2",
		srv.URL + "/keep?q=1",
	}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i, w := range want {
		if links[i].URL != w {
			t.Fatalf("link %d = %q, want %q", i, links[i].URL, w)
		}
	}
	if links[0].AnchorText != "Relative" {
		t.Fatalf("anchor text = %q", links[0].AnchorText)
	}
}

func TestDiscoverLinksIncludeExcludePatterns(t *testing.T) {
	html := `<html><body>
		<a href="/docs/intro">Docs</a>
		<a href="/docs/private/secret">Private</a>
		<a href="/blog/post">Blog</a>
	</body></html>`

	srv := servePage(t, html, "")
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	d := NewHTTPLinkDiscoverer()
	links, err := d.DiscoverLinks(context.Background(), srv.URL, u.Host, `/docs/`, `/private/`)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(links) != 1 || links[0].URL != srv.URL+"/docs/intro" {
		t.Fatalf("links = %v, want only /docs/intro", links)
	}
}

func TestDiscoverLinksNon2xxIsExternalServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	d := NewHTTPLinkDiscoverer()
	_, err := d.DiscoverLinks(context.Background(), srv.URL, u.Host, "", "")
	if !errors.IsExternalService(err) {
		t.Fatalf("error = %v, want external service", err)
	}
}

func TestDiscoverLinksBadPatternIsValidationError(t *testing.T) {
	d := NewHTTPLinkDiscoverer()
	_, err := d.DiscoverLinks(context.Background(), "https://ex.com/", "ex.com", "(", "")
	if !errors.IsValidation(err) {
		t.Fatalf("error = %v, want validation", err)
	}
}
