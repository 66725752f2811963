package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

// NotebookStore persists notebooks.
type NotebookStore struct {
	db *sql.DB
}

// NewNotebookStore creates a NotebookStore.
func NewNotebookStore(db *sql.DB) *NotebookStore {
	return &NotebookStore{db: db}
}

// Save inserts or updates a notebook.
func (s *NotebookStore) Save(ctx context.Context, nb model.Notebook) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notebooks (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`,
		nb.ID, nb.Name, nb.Description, nb.CreatedAt, nb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save notebook %s: %w", nb.ID, err)
	}
	return nil
}

// Get fetches a notebook by id.
func (s *NotebookStore) Get(ctx context.Context, id string) (model.Notebook, error) {
	var nb model.Notebook
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM notebooks WHERE id = $1`, id).
		Scan(&nb.ID, &nb.Name, &nb.Description, &nb.CreatedAt, &nb.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Notebook{}, errors.NotFoundf("notebook %s", id)
	}
	if err != nil {
		return model.Notebook{}, fmt.Errorf("get notebook %s: %w", id, err)
	}
	return nb, nil
}

// List returns all notebooks, newest first.
func (s *NotebookStore) List(ctx context.Context) ([]model.Notebook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM notebooks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	defer rows.Close()

	var out []model.Notebook
	for rows.Next() {
		var nb model.Notebook
		if err := rows.Scan(&nb.ID, &nb.Name, &nb.Description, &nb.CreatedAt, &nb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan notebook: %w", err)
		}
		out = append(out, nb)
	}
	return out, rows.Err()
}

// Delete removes a notebook; owned rows cascade.
func (s *NotebookStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notebooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notebook %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete notebook %s: %w", id, err)
	}
	if n == 0 {
		return errors.NotFoundf("notebook %s", id)
	}
	return nil
}
