package crawl

import (
	"context"
	"sync"
	"testing"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

type memCrawlStore struct {
	mu         sync.Mutex
	jobs       map[string]model.CrawlJob
	discovered []model.DiscoveredURL
}

func newMemCrawlStore(jobs ...model.CrawlJob) *memCrawlStore {
	s := &memCrawlStore{jobs: make(map[string]model.CrawlJob)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memCrawlStore) GetJob(ctx context.Context, id string) (model.CrawlJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.CrawlJob{}, errors.NotFoundf("crawl job %s", id)
	}
	return j, nil
}

func (s *memCrawlStore) UpdateJob(ctx context.Context, j model.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return errors.NotFoundf("crawl job %s", j.ID)
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *memCrawlStore) SaveDiscovered(ctx context.Context, d model.DiscoveredURL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.discovered {
		if existing.CrawlJobID == d.CrawlJobID && existing.URL == d.URL {
			return nil
		}
	}
	s.discovered = append(s.discovered, d)
	return nil
}

// cancelAfter flips the job to CANCELLED once n pages have been counted.
func (s *memCrawlStore) cancelAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		if j.TotalIngested >= n {
			cancelled, err := j.Cancel()
			if err == nil {
				s.jobs[id] = cancelled
			}
		}
	}
}

type memDocStore struct {
	mu   sync.Mutex
	docs []model.Document
}

func (s *memDocStore) Save(ctx context.Context, d model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.docs {
		if existing.NotebookID == d.NotebookID && existing.URL == d.URL {
			return errors.InvalidStatef("document with url %q already exists", d.URL)
		}
	}
	s.docs = append(s.docs, d)
	return nil
}

func (s *memDocStore) ExistsByURL(ctx context.Context, notebookID, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.NotebookID == notebookID && d.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (s *memDocStore) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.URL
	}
	return out
}

// stubDiscoverer serves a fixed link graph; URLs absent from the map
// report a discovery failure.
type stubDiscoverer struct {
	graph map[string][]Link
	fail  map[string]bool
}

func (s stubDiscoverer) DiscoverLinks(ctx context.Context, pageURL, domain, include, exclude string) ([]Link, error) {
	if s.fail[pageURL] {
		return nil, errors.ExternalServicef("fetch %s: status 500", pageURL)
	}
	return s.graph[pageURL], nil
}

type stubIngestor struct {
	mu        sync.Mutex
	triggered []string
}

func (s *stubIngestor) Trigger(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggered = append(s.triggered, documentID)
	return true
}

func newTestService(crawls *memCrawlStore, docs *memDocStore, disc LinkDiscoverer) (*Service, *stubIngestor) {
	ing := &stubIngestor{}
	return NewService(crawls, docs, disc, ing, nil), ing
}

func mustJob(t *testing.T, notebookID, seed string, depth, pages int) model.CrawlJob {
	t.Helper()
	j, err := model.NewCrawlJob(notebookID, seed, depth, pages, "", "")
	if err != nil {
		t.Fatalf("new crawl job: %v", err)
	}
	return j
}

func TestExecuteRespectsMaxDepth(t *testing.T) {
	job := mustJob(t, "nb1", "https://ex.com/", 1, 50)
	crawls := newMemCrawlStore(job)
	docs := &memDocStore{}
	disc := stubDiscoverer{graph: map[string][]Link{
		"https://ex.com/":   {{URL: "https://ex.com/p1"}},
		"https://ex.com/p1": {{URL: "https://ex.com/p1/deep"}},
	}}

	svc, ing := newTestService(crawls, docs, disc)
	if err := svc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	urls := docs.urls()
	if len(urls) != 2 || urls[0] != "https://ex.com/" || urls[1] != "https://ex.com/p1" {
		t.Fatalf("documents = %v, want seed and /p1", urls)
	}
	for _, d := range crawls.discovered {
		if d.URL == "https://ex.com/p1/deep" {
			t.Fatal("depth-2 url must not be recorded")
		}
		if d.Depth > job.MaxDepth {
			t.Fatalf("discovered url %s at depth %d exceeds max", d.URL, d.Depth)
		}
	}
	if len(ing.triggered) != 2 {
		t.Fatalf("triggered %d ingestions, want 2", len(ing.triggered))
	}

	final, _ := crawls.GetJob(context.Background(), job.ID)
	if final.Status != model.CrawlCompleted {
		t.Fatalf("status = %s, want COMPLETED", final.Status)
	}
	if final.TotalIngested != 2 || final.TotalDiscovered != 2 {
		t.Fatalf("counters = %d/%d, want 2/2", final.TotalDiscovered, final.TotalIngested)
	}
}

func TestExecuteRespectsMaxPagesInFIFOOrder(t *testing.T) {
	job := mustJob(t, "nb1", "https://ex.com/", 3, 3)
	crawls := newMemCrawlStore(job)
	docs := &memDocStore{}
	disc := stubDiscoverer{graph: map[string][]Link{
		"https://ex.com/": {
			{URL: "https://ex.com/p1"},
			{URL: "https://ex.com/p2"},
			{URL: "https://ex.com/p3"},
			{URL: "https://ex.com/p4"},
		},
	}}

	svc, _ := newTestService(crawls, docs, disc)
	if err := svc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"https://ex.com/", "https://ex.com/p1", "https://ex.com/p2"}
	urls := docs.urls()
	if len(urls) != len(want) {
		t.Fatalf("documents = %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("documents = %v, want %v", urls, want)
		}
	}

	final, _ := crawls.GetJob(context.Background(), job.ID)
	if final.TotalIngested != 3 {
		t.Fatalf("total_ingested = %d, want 3", final.TotalIngested)
	}
	if final.TotalIngested > final.MaxPages {
		t.Fatal("page bound violated")
	}
}

func TestExecuteSkipsExistingDocuments(t *testing.T) {
	job := mustJob(t, "nb1", "https://ex.com/", 2, 10)
	crawls := newMemCrawlStore(job)
	docs := &memDocStore{}
	if err := docs.Save(context.Background(), model.NewDocument("nb1", "https://ex.com/p1")); err != nil {
		t.Fatal(err)
	}
	disc := stubDiscoverer{graph: map[string][]Link{
		"https://ex.com/": {{URL: "https://ex.com/p1"}, {URL: "https://ex.com/p2"}},
	}}

	svc, _ := newTestService(crawls, docs, disc)
	if err := svc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var skipped *model.DiscoveredURL
	for i := range crawls.discovered {
		if crawls.discovered[i].URL == "https://ex.com/p1" {
			skipped = &crawls.discovered[i]
		}
	}
	if skipped == nil || skipped.Status != model.DiscoveredSkipped {
		t.Fatalf("existing url not recorded as SKIPPED: %+v", skipped)
	}
	if skipped.DocumentID != "" {
		t.Fatal("skipped url must not reference a new document")
	}

	// Seed plus /p2; /p1 pre-existed.
	if got := len(docs.urls()); got != 3 {
		t.Fatalf("documents = %d, want 3", got)
	}
	final, _ := crawls.GetJob(context.Background(), job.ID)
	if final.TotalIngested != 2 {
		t.Fatalf("total_ingested = %d, want 2 (skip does not count)", final.TotalIngested)
	}
}

func TestExecuteVisitsEachURLOnce(t *testing.T) {
	job := mustJob(t, "nb1", "https://ex.com/", 5, 50)
	crawls := newMemCrawlStore(job)
	docs := &memDocStore{}
	// Cycle: / -> p1 -> / and p1 -> p1.
	disc := stubDiscoverer{graph: map[string][]Link{
		"https://ex.com/":   {{URL: "https://ex.com/p1"}},
		"https://ex.com/p1": {{URL: "https://ex.com/"}, {URL: "https://ex.com/p1"}},
	}}

	svc, _ := newTestService(crawls, docs, disc)
	if err := svc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := len(docs.urls()); got != 2 {
		t.Fatalf("documents = %d, want 2 despite the cycle", got)
	}
}

func TestExecuteContinuesAfterDiscoveryFailure(t *testing.T) {
	job := mustJob(t, "nb1", "https://ex.com/", 2, 10)
	crawls := newMemCrawlStore(job)
	docs := &memDocStore{}
	disc := stubDiscoverer{
		graph: map[string][]Link{
			"https://ex.com/": {{URL: "https://ex.com/bad"}, {URL: "https://ex.com/good"}},
			"https://ex.com/good": {{URL: "https://ex.com/leaf"}},
		},
		fail: map[string]bool{"https://ex.com/bad": true},
	}

	svc, _ := newTestService(crawls, docs, disc)
	if err := svc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	urls := docs.urls()
	// The failing page is still ingested; only its children are lost.
	want := map[string]bool{
		"https://ex.com/":     true,
		"https://ex.com/bad":  true,
		"https://ex.com/good": true,
		"https://ex.com/leaf": true,
	}
	if len(urls) != len(want) {
		t.Fatalf("documents = %v", urls)
	}
	for _, u := range urls {
		if !want[u] {
			t.Fatalf("unexpected document %s", u)
		}
	}

	final, _ := crawls.GetJob(context.Background(), job.ID)
	if final.Status != model.CrawlCompleted {
		t.Fatalf("status = %s, a per-url failure must not fail the job", final.Status)
	}
}

func TestExecuteHonorsCancellation(t *testing.T) {
	job := mustJob(t, "nb1", "https://ex.com/", 5, 50)
	crawls := newMemCrawlStore(job)
	docs := &memDocStore{}

	disc := cancelingDiscoverer{
		stubDiscoverer: stubDiscoverer{graph: map[string][]Link{
			"https://ex.com/":   {{URL: "https://ex.com/p1"}},
			"https://ex.com/p1": {{URL: "https://ex.com/p2"}},
		}},
		store:   crawls,
		trigger: "https://ex.com/",
	}

	svc, _ := newTestService(crawls, docs, disc)
	if err := svc.Execute(context.Background(), job.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	final, _ := crawls.GetJob(context.Background(), job.ID)
	if final.Status != model.CrawlCancelled {
		t.Fatalf("status = %s, want CANCELLED", final.Status)
	}
	// Only the seed was processed before the cancel landed.
	if got := len(docs.urls()); got != 1 {
		t.Fatalf("documents = %d, want 1", got)
	}
}

// cancelingDiscoverer cancels the job as a side effect of discovering
// links on the trigger page, simulating a user cancel mid-crawl.
type cancelingDiscoverer struct {
	stubDiscoverer
	store   *memCrawlStore
	trigger string
}

func (c cancelingDiscoverer) DiscoverLinks(ctx context.Context, pageURL, domain, include, exclude string) ([]Link, error) {
	links, err := c.stubDiscoverer.DiscoverLinks(ctx, pageURL, domain, include, exclude)
	if pageURL == c.trigger {
		c.store.cancelAfter(0)
	}
	return links, err
}
