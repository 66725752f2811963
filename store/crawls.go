package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

// CrawlStore persists crawl jobs and the URLs they discover.
type CrawlStore struct {
	db *sql.DB
}

// NewCrawlStore creates a CrawlStore.
func NewCrawlStore(db *sql.DB) *CrawlStore {
	return &CrawlStore{db: db}
}

const crawlJobColumns = `id, notebook_id, seed_url, domain, max_depth, max_pages,
	url_include_pattern, url_exclude_pattern, status, total_discovered, total_ingested,
	error_message, created_at, updated_at`

func scanCrawlJob(row interface{ Scan(...any) error }) (model.CrawlJob, error) {
	var j model.CrawlJob
	err := row.Scan(&j.ID, &j.NotebookID, &j.SeedURL, &j.Domain, &j.MaxDepth, &j.MaxPages,
		&j.URLIncludePattern, &j.URLExcludePattern, &j.Status, &j.TotalDiscovered,
		&j.TotalIngested, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// SaveJob inserts a new crawl job.
func (s *CrawlStore) SaveJob(ctx context.Context, j model.CrawlJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_jobs (`+crawlJobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		j.ID, j.NotebookID, j.SeedURL, j.Domain, j.MaxDepth, j.MaxPages,
		j.URLIncludePattern, j.URLExcludePattern, j.Status, j.TotalDiscovered,
		j.TotalIngested, j.ErrorMessage, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save crawl job %s: %w", j.ID, err)
	}
	return nil
}

// UpdateJob writes the mutable state of an existing job.
func (s *CrawlStore) UpdateJob(ctx context.Context, j model.CrawlJob) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET status = $2, total_discovered = $3, total_ingested = $4, error_message = $5, updated_at = $6
		WHERE id = $1`,
		j.ID, j.Status, j.TotalDiscovered, j.TotalIngested, j.ErrorMessage, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update crawl job %s: %w", j.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update crawl job %s: %w", j.ID, err)
	}
	if n == 0 {
		return errors.NotFoundf("crawl job %s", j.ID)
	}
	return nil
}

// GetJob fetches a crawl job by id.
func (s *CrawlStore) GetJob(ctx context.Context, id string) (model.CrawlJob, error) {
	j, err := scanCrawlJob(s.db.QueryRowContext(ctx,
		`SELECT `+crawlJobColumns+` FROM crawl_jobs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return model.CrawlJob{}, errors.NotFoundf("crawl job %s", id)
	}
	if err != nil {
		return model.CrawlJob{}, fmt.Errorf("get crawl job %s: %w", id, err)
	}
	return j, nil
}

// ListJobsByNotebook returns a notebook's crawl jobs, newest first.
func (s *CrawlStore) ListJobsByNotebook(ctx context.Context, notebookID string) ([]model.CrawlJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+crawlJobColumns+` FROM crawl_jobs WHERE notebook_id = $1 ORDER BY created_at DESC`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list crawl jobs: %w", err)
	}
	defer rows.Close()

	var out []model.CrawlJob
	for rows.Next() {
		j, err := scanCrawlJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crawl job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SaveDiscovered records one URL observed by a crawl. The
// (crawl_job_id, url) unique constraint makes re-recording a no-op.
func (s *CrawlStore) SaveDiscovered(ctx context.Context, d model.DiscoveredURL) error {
	var docID any
	if d.DocumentID != "" {
		docID = d.DocumentID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_discovered_urls (id, crawl_job_id, url, depth, status, document_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (crawl_job_id, url) DO NOTHING`,
		d.ID, d.CrawlJobID, d.URL, d.Depth, d.Status, docID, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("save discovered url %q: %w", d.URL, err)
	}
	return nil
}

// ListDiscovered returns a crawl's discovered URLs in discovery order.
func (s *CrawlStore) ListDiscovered(ctx context.Context, crawlJobID string) ([]model.DiscoveredURL, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, crawl_job_id, url, depth, status, document_id, created_at
		FROM crawl_discovered_urls WHERE crawl_job_id = $1 ORDER BY created_at`, crawlJobID)
	if err != nil {
		return nil, fmt.Errorf("list discovered urls: %w", err)
	}
	defer rows.Close()

	var out []model.DiscoveredURL
	for rows.Next() {
		var d model.DiscoveredURL
		var docID sql.NullString
		if err := rows.Scan(&d.ID, &d.CrawlJobID, &d.URL, &d.Depth, &d.Status, &docID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan discovered url: %w", err)
		}
		d.DocumentID = docID.String
		out = append(out, d)
	}
	return out, rows.Err()
}
