package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sweetpotato0/notelm/background"
	"github.com/sweetpotato0/notelm/chunking"
	"github.com/sweetpotato0/notelm/extract"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

type memDocuments struct {
	mu     sync.Mutex
	docs   map[string]model.Document
	chunks map[string][]model.Chunk
}

func newMemDocuments(docs ...model.Document) *memDocuments {
	m := &memDocuments{
		docs:   make(map[string]model.Document),
		chunks: make(map[string][]model.Chunk),
	}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocuments) Get(ctx context.Context, id string) (model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return model.Document{}, errors.NotFoundf("document %s", id)
	}
	return d, nil
}

func (m *memDocuments) Update(ctx context.Context, d model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[d.ID]; !ok {
		return errors.NotFoundf("document %s", d.ID)
	}
	m.docs[d.ID] = d
	return nil
}

func (m *memDocuments) CompleteWithChunks(ctx context.Context, d model.Document, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[d.ID]; !ok {
		return errors.NotFoundf("document %s", d.ID)
	}
	m.docs[d.ID] = d
	m.chunks[d.ID] = chunks
	return nil
}

type stubExtractor struct {
	content extract.ExtractedContent
	err     error
}

func (s stubExtractor) Extract(ctx context.Context, url string) (extract.ExtractedContent, error) {
	if s.err != nil {
		return extract.ExtractedContent{}, s.err
	}
	return s.content, nil
}

func (s stubExtractor) Supports(url string) bool { return true }

type stubEmbedder struct {
	batches [][]string
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }

// byteTokenizer treats every byte as one token, which satisfies the
// suffix-decode property the chunker relies on.
type byteTokenizer struct{}

func (byteTokenizer) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids
}

func (byteTokenizer) Decode(ids []int) string {
	b := make([]byte, len(ids))
	for i, id := range ids {
		b[i] = byte(id)
	}
	return string(b)
}

func (byteTokenizer) Count(text string) int { return len(text) }

func newTestPipeline(docs DocumentStore, ex extract.Extractor, em *stubEmbedder) *Pipeline {
	chunker := chunking.New(byteTokenizer{}, chunking.WithChunkSize(40), chunking.WithChunkOverlap(8))
	return NewPipeline(docs, ex, chunker, em)
}

func TestProcessCompletesDocument(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/a")
	docs := newMemDocuments(doc)

	text := strings.Repeat("alpha beta gamma delta\n", 6)
	em := &stubEmbedder{}
	p := newTestPipeline(docs, stubExtractor{
		content: extract.NewExtractedContent(doc.URL, "Example Title", text),
	}, em)

	if err := p.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := docs.Get(context.Background(), doc.ID)
	if got.Status != model.DocumentCompleted {
		t.Fatalf("status = %s, want COMPLETED", got.Status)
	}
	if got.Title != "Example Title" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.ContentHash == "" {
		t.Fatal("content hash not recorded")
	}

	chunks := docs.chunks[doc.ID]
	if len(chunks) == 0 {
		t.Fatal("no chunks persisted")
	}
	for i, c := range chunks {
		if c.Embedding == nil {
			t.Fatalf("chunk %d has no embedding", i)
		}
		if text[c.CharStart:c.CharEnd] != c.Content {
			t.Fatalf("chunk %d offsets do not match content", i)
		}
	}
}

func TestProcessBatchesEmbeddings(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/big")
	docs := newMemDocuments(doc)

	// Small chunk size over long text yields well over ten chunks.
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("one two three four five six seven\n")
	}
	em := &stubEmbedder{}
	p := newTestPipeline(docs, stubExtractor{
		content: extract.NewExtractedContent(doc.URL, "", sb.String()),
	}, em)

	if err := p.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	total := 0
	for i, batch := range em.batches {
		if len(batch) > embedBatchSize {
			t.Fatalf("batch %d has %d texts, max is %d", i, len(batch), embedBatchSize)
		}
		// Only the final batch may be short.
		if i < len(em.batches)-1 && len(batch) != embedBatchSize {
			t.Fatalf("batch %d has %d texts, want %d", i, len(batch), embedBatchSize)
		}
		total += len(batch)
	}
	if total != len(docs.chunks[doc.ID]) {
		t.Fatalf("embedded %d texts for %d chunks", total, len(docs.chunks[doc.ID]))
	}
}

func TestProcessFailureMarksDocumentFailed(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/broken")
	docs := newMemDocuments(doc)

	p := newTestPipeline(docs, stubExtractor{
		err: errors.ExternalServicef("reader returned status 503"),
	}, &stubEmbedder{})

	err := p.Process(context.Background(), doc.ID)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.IsExternalService(err) {
		t.Fatalf("error kind = %v", err)
	}

	got, _ := docs.Get(context.Background(), doc.ID)
	if got.Status != model.DocumentFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "503") {
		t.Fatalf("error message %q does not carry the cause", got.ErrorMessage)
	}
	if len(docs.chunks[doc.ID]) != 0 {
		t.Fatal("failed ingestion must not persist chunks")
	}
}

func TestProcessEmbedFailureMarksDocumentFailed(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/embed-fail")
	docs := newMemDocuments(doc)

	p := newTestPipeline(docs, stubExtractor{
		content: extract.NewExtractedContent(doc.URL, "", "some extracted text here\n"),
	}, &stubEmbedder{err: errors.ExternalServicef("embedding quota exceeded")})

	if err := p.Process(context.Background(), doc.ID); err == nil {
		t.Fatal("expected an error")
	}
	got, _ := docs.Get(context.Background(), doc.ID)
	if got.Status != model.DocumentFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
}

// commitFailingStore accepts every status update but rejects the final
// chunk transaction, like a chunk constraint violation would.
type commitFailingStore struct {
	*memDocuments
}

func (s commitFailingStore) CompleteWithChunks(ctx context.Context, d model.Document, chunks []model.Chunk) error {
	return errors.ExternalServicef("chunk batch insert rejected")
}

func TestProcessCommitFailureMarksDocumentFailed(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/commit-fail")
	docs := newMemDocuments(doc)

	em := &stubEmbedder{}
	p := newTestPipeline(commitFailingStore{docs}, stubExtractor{
		content: extract.NewExtractedContent(doc.URL, "Title", "some extracted text here\n"),
	}, em)

	if err := p.Process(context.Background(), doc.ID); err == nil {
		t.Fatal("expected an error")
	}

	got, _ := docs.Get(context.Background(), doc.ID)
	if got.Status != model.DocumentFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "rejected") {
		t.Fatalf("error message %q does not carry the cause", got.ErrorMessage)
	}
	if len(docs.chunks[doc.ID]) != 0 {
		t.Fatal("rejected commit must not persist chunks")
	}
}

func TestProcessRejectsNonPendingDocument(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/busy")
	doc, _ = doc.StartProcessing()
	docs := newMemDocuments(doc)

	p := newTestPipeline(docs, stubExtractor{}, &stubEmbedder{})
	err := p.Process(context.Background(), doc.ID)
	if !errors.IsInvalidState(err) {
		t.Fatalf("error = %v, want invalid state", err)
	}
}

func TestServiceTriggerIsIdempotent(t *testing.T) {
	doc := model.NewDocument("nb1", "https://example.com/slow")
	docs := newMemDocuments(doc)

	release := make(chan struct{})
	started := make(chan struct{})
	blocking := blockingExtractor{release: release, started: started, url: doc.URL}

	p := newTestPipeline(docs, blocking, &stubEmbedder{})
	registry := background.NewRegistry(2)
	svc := NewService(p, registry)

	if !svc.Trigger(doc.ID) {
		t.Fatal("first trigger should schedule")
	}
	<-started
	if svc.Trigger(doc.ID) {
		t.Fatal("second trigger while running should be a no-op")
	}
	close(release)
	registry.Wait()
}

type blockingExtractor struct {
	release chan struct{}
	started chan struct{}
	url     string
}

func (b blockingExtractor) Extract(ctx context.Context, url string) (extract.ExtractedContent, error) {
	close(b.started)
	<-b.release
	return extract.NewExtractedContent(b.url, "", "short text body\n"), nil
}

func (b blockingExtractor) Supports(url string) bool { return true }
