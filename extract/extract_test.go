package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

type stubExtractor struct {
	supports bool
	content  ExtractedContent
	err      error
	calls    int
}

func (s *stubExtractor) Supports(string) bool { return s.supports }

func (s *stubExtractor) Extract(context.Context, string) (ExtractedContent, error) {
	s.calls++
	return s.content, s.err
}

func TestNewExtractedContentDerivedFields(t *testing.T) {
	c := NewExtractedContent("https://ex.com", "T", "one two  three")
	if c.WordCount != 3 {
		t.Fatalf("word count = %d", c.WordCount)
	}
	if len(c.ContentHash) != 64 {
		t.Fatalf("content hash %q is not sha256 hex", c.ContentHash)
	}
	// Same content, same hash.
	if c2 := NewExtractedContent("https://other", "", "one two  three"); c2.ContentHash != c.ContentHash {
		t.Fatal("hash should depend only on content")
	}
}

func TestCompositeFallsThroughOnFailure(t *testing.T) {
	primary := &stubExtractor{supports: true, err: errors.ExternalServicef("reader down")}
	fallback := &stubExtractor{supports: true, content: NewExtractedContent("u", "T", "text")}

	c := NewComposite(primary, fallback)
	got, err := c.Extract(context.Background(), "https://ex.com/a")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Content != "text" {
		t.Fatalf("content = %q", got.Content)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("calls = %d/%d", primary.calls, fallback.calls)
	}
}

func TestCompositeSkipsUnsupported(t *testing.T) {
	skipped := &stubExtractor{supports: false}
	used := &stubExtractor{supports: true, content: NewExtractedContent("u", "", "body")}

	c := NewComposite(skipped, used)
	if _, err := c.Extract(context.Background(), "https://ex.com"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if skipped.calls != 0 {
		t.Fatal("unsupported extractor was called")
	}
}

func TestCompositeAggregatesFailures(t *testing.T) {
	a := &stubExtractor{supports: true, err: errors.ExternalServicef("first broke")}
	b := &stubExtractor{supports: true, err: errors.ExternalServicef("second broke")}

	c := NewComposite(a, b)
	_, err := c.Extract(context.Background(), "https://ex.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsExternalService(err) {
		t.Fatalf("expected external service error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "first broke") || !strings.Contains(msg, "second broke") {
		t.Fatalf("error does not aggregate messages: %v", msg)
	}
}

func TestJinaExtractorParsesPreamble(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Title: Example Domain\nURL Source: https://example.com/\n\nThis domain is for use in examples.\nMore text here."))
	}))
	defer srv.Close()

	e := NewJinaExtractor("", WithJinaBaseURL(srv.URL+"/"))
	got, err := e.Extract(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Title != "Example Domain" {
		t.Fatalf("title = %q", got.Title)
	}
	if !strings.HasPrefix(got.Content, "This domain is for use") {
		t.Fatalf("content = %q", got.Content)
	}
	if got.WordCount == 0 || got.ContentHash == "" {
		t.Fatal("derived fields missing")
	}
}

func TestJinaExtractorPlainBodyWithoutPreamble(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Just plain text without metadata"))
	}))
	defer srv.Close()

	e := NewJinaExtractor("", WithJinaBaseURL(srv.URL+"/"))
	got, err := e.Extract(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Content != "Just plain text without metadata" {
		t.Fatalf("content = %q", got.Content)
	}
}

func TestJinaExtractorNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewJinaExtractor("key", WithJinaBaseURL(srv.URL+"/"))
	_, err := e.Extract(context.Background(), "https://example.com/")
	if !errors.IsExternalService(err) {
		t.Fatalf("expected external service error, got %v", err)
	}
}

func TestLocalExtractorStripsBoilerplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "NTLMCrawler/1.0" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`<html><head><title>My Page</title><script>evil()</script></head>
<body><nav>menu</nav><p>First paragraph.</p><p>Second paragraph.</p><footer>contact</footer></body></html>`))
	}))
	defer srv.Close()

	e := NewLocalExtractor()
	got, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Title != "My Page" {
		t.Fatalf("title = %q", got.Title)
	}
	if strings.Contains(got.Content, "menu") || strings.Contains(got.Content, "evil") {
		t.Fatalf("boilerplate survived: %q", got.Content)
	}
	if !strings.Contains(got.Content, "First paragraph.") || !strings.Contains(got.Content, "Second paragraph.") {
		t.Fatalf("paragraphs missing: %q", got.Content)
	}
}
