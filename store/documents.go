package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

const uniqueViolation = "23505"

// DocumentStore persists documents and owns the atomic
// document-plus-chunks commit at the end of ingestion.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, notebook_id, url, title, status, error_message, content_hash, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.NotebookID, &d.URL, &d.Title, &d.Status,
		&d.ErrorMessage, &d.ContentHash, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Save inserts a new document. A (notebook_id, url) duplicate surfaces
// as an invalid-state error so the HTTP layer answers 409.
func (s *DocumentStore) Save(ctx context.Context, d model.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.NotebookID, d.URL, d.Title, d.Status, d.ErrorMessage,
		d.ContentHash, d.CreatedAt, d.UpdatedAt)
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return errors.InvalidStatef("document with url %q already exists in notebook %s", d.URL, d.NotebookID)
	}
	if err != nil {
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}
	return nil
}

// Update writes the full current state of an existing document.
func (s *DocumentStore) Update(ctx context.Context, d model.Document) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET title = $2, status = $3, error_message = $4, content_hash = $5, updated_at = $6
		WHERE id = $1`,
		d.ID, d.Title, d.Status, d.ErrorMessage, d.ContentHash, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update document %s: %w", d.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document %s: %w", d.ID, err)
	}
	if n == 0 {
		return errors.NotFoundf("document %s", d.ID)
	}
	return nil
}

// Get fetches a document by id.
func (s *DocumentStore) Get(ctx context.Context, id string) (model.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return model.Document{}, errors.NotFoundf("document %s", id)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

// GetByURL fetches the document for (notebook, url), if any.
func (s *DocumentStore) GetByURL(ctx context.Context, notebookID, url string) (model.Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE notebook_id = $1 AND url = $2`,
		notebookID, url))
	if err == sql.ErrNoRows {
		return model.Document{}, errors.NotFoundf("document for url %q in notebook %s", url, notebookID)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("get document by url: %w", err)
	}
	return d, nil
}

// ExistsByURL reports whether (notebook, url) is already taken.
func (s *DocumentStore) ExistsByURL(ctx context.Context, notebookID, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE notebook_id = $1 AND url = $2)`,
		notebookID, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check document url: %w", err)
	}
	return exists, nil
}

// ListByNotebook returns a notebook's documents in insertion order.
func (s *DocumentStore) ListByNotebook(ctx context.Context, notebookID string) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE notebook_id = $1 ORDER BY created_at`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a document; its chunks cascade.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return errors.NotFoundf("document %s", id)
	}
	return nil
}

// CompleteWithChunks commits the terminal state of one ingestion run in
// a single transaction: update the document row, drop the old chunk
// set, insert the new one. Readers therefore only ever observe the
// prior complete set or the new complete set.
func (s *DocumentStore) CompleteWithChunks(ctx context.Context, d model.Document, chunks []model.Chunk) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET title = $2, status = $3, error_message = $4, content_hash = $5, updated_at = $6
			WHERE id = $1`,
			d.ID, d.Title, d.Status, d.ErrorMessage, d.ContentHash, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update document %s: %w", d.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update document %s: %w", d.ID, err)
		} else if n == 0 {
			return errors.NotFoundf("document %s", d.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, d.ID); err != nil {
			return fmt.Errorf("delete chunks for document %s: %w", d.ID, err)
		}
		return insertChunks(ctx, tx, chunks)
	})
}
