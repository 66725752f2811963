package model

import (
	"net/url"
	"regexp"
	"time"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

// CrawlStatus is the lifecycle state of a crawl job.
type CrawlStatus string

const (
	CrawlPending    CrawlStatus = "PENDING"
	CrawlInProgress CrawlStatus = "IN_PROGRESS"
	CrawlCompleted  CrawlStatus = "COMPLETED"
	CrawlFailed     CrawlStatus = "FAILED"
	CrawlCancelled  CrawlStatus = "CANCELLED"
)

// CrawlJob is a bounded breadth-first crawl rooted at SeedURL. Domain is
// the host extracted from the seed; only same-host links are followed.
type CrawlJob struct {
	ID                string
	NotebookID        string
	SeedURL           string
	Domain            string
	MaxDepth          int
	MaxPages          int
	URLIncludePattern string
	URLExcludePattern string
	Status            CrawlStatus
	TotalDiscovered   int
	TotalIngested     int
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCrawlJob validates the seed and patterns and returns a PENDING job.
func NewCrawlJob(notebookID, seedURL string, maxDepth, maxPages int, includePattern, excludePattern string) (CrawlJob, error) {
	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return CrawlJob{}, errors.Validationf("seed url %q is not an absolute http(s) url", seedURL)
	}
	if maxDepth < 1 {
		return CrawlJob{}, errors.Validationf("max_depth must be >= 1, got %d", maxDepth)
	}
	if maxPages < 1 {
		return CrawlJob{}, errors.Validationf("max_pages must be >= 1, got %d", maxPages)
	}
	for _, p := range []string{includePattern, excludePattern} {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return CrawlJob{}, errors.Validationf("bad url pattern %q: %v", p, err)
		}
	}
	now := Now()
	return CrawlJob{
		ID:                NewID(),
		NotebookID:        notebookID,
		SeedURL:           seedURL,
		Domain:            u.Host,
		MaxDepth:          maxDepth,
		MaxPages:          maxPages,
		URLIncludePattern: includePattern,
		URLExcludePattern: excludePattern,
		Status:            CrawlPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Start transitions PENDING -> IN_PROGRESS.
func (j CrawlJob) Start() (CrawlJob, error) {
	if j.Status != CrawlPending {
		return j, errors.InvalidStatef("crawl job %s: cannot start from %s", j.ID, j.Status)
	}
	j.Status = CrawlInProgress
	j.UpdatedAt = Now()
	return j, nil
}

// Complete transitions IN_PROGRESS -> COMPLETED.
func (j CrawlJob) Complete() (CrawlJob, error) {
	if j.Status != CrawlInProgress {
		return j, errors.InvalidStatef("crawl job %s: cannot complete from %s", j.ID, j.Status)
	}
	j.Status = CrawlCompleted
	j.UpdatedAt = Now()
	return j, nil
}

// Fail transitions IN_PROGRESS -> FAILED with an error message.
func (j CrawlJob) Fail(message string) (CrawlJob, error) {
	if j.Status != CrawlInProgress {
		return j, errors.InvalidStatef("crawl job %s: cannot fail from %s", j.ID, j.Status)
	}
	j.Status = CrawlFailed
	j.ErrorMessage = message
	j.UpdatedAt = Now()
	return j, nil
}

// Cancel transitions PENDING or IN_PROGRESS -> CANCELLED.
func (j CrawlJob) Cancel() (CrawlJob, error) {
	if j.Status != CrawlPending && j.Status != CrawlInProgress {
		return j, errors.InvalidStatef("crawl job %s: cannot cancel from %s", j.ID, j.Status)
	}
	j.Status = CrawlCancelled
	j.UpdatedAt = Now()
	return j, nil
}

// Terminal reports whether the job can no longer change state.
func (j CrawlJob) Terminal() bool {
	switch j.Status {
	case CrawlCompleted, CrawlFailed, CrawlCancelled:
		return true
	}
	return false
}

// CountPage returns a copy with both counters incremented.
func (j CrawlJob) CountPage() CrawlJob {
	j.TotalDiscovered++
	j.TotalIngested++
	j.UpdatedAt = Now()
	return j
}

// DiscoveredStatus records the outcome for one URL seen by a crawl.
type DiscoveredStatus string

const (
	DiscoveredPending  DiscoveredStatus = "PENDING"
	DiscoveredIngested DiscoveredStatus = "INGESTED"
	DiscoveredSkipped  DiscoveredStatus = "SKIPPED"
	DiscoveredFailed   DiscoveredStatus = "FAILED"
)

// DiscoveredURL is a value object unique per (crawl job, url).
type DiscoveredURL struct {
	ID         string
	CrawlJobID string
	URL        string
	Depth      int
	Status     DiscoveredStatus
	DocumentID string
	CreatedAt  time.Time
}

// NewDiscoveredURL records one URL observed during a crawl.
func NewDiscoveredURL(crawlJobID, rawURL string, depth int, status DiscoveredStatus, documentID string) DiscoveredURL {
	return DiscoveredURL{
		ID:         NewID(),
		CrawlJobID: crawlJobID,
		URL:        rawURL,
		Depth:      depth,
		Status:     status,
		DocumentID: documentID,
		CreatedAt:  Now(),
	}
}
