package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/sweetpotato0/notelm/model"
)

// ChunkStore persists chunks and runs the cosine-distance search.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore creates a ChunkStore.
func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, char_start, char_end, chunk_index, token_count, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var embedding any
		if c.Embedding != nil {
			embedding = pgvector.NewVector(c.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Content,
			c.CharStart, c.CharEnd, c.ChunkIndex, c.TokenCount, embedding, c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %d of document %s: %w", c.ChunkIndex, c.DocumentID, err)
		}
	}
	return nil
}

// SaveBatch inserts chunks in one transaction.
func (s *ChunkStore) SaveBatch(ctx context.Context, chunks []model.Chunk) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertChunks(ctx, tx, chunks)
	})
}

// DeleteByDocument removes every chunk of a document.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

const chunkColumns = `id, document_id, content, char_start, char_end, chunk_index, token_count, embedding, created_at`

func scanChunk(row interface{ Scan(...any) error }) (model.Chunk, error) {
	var c model.Chunk
	var embedding *pgvector.Vector
	err := row.Scan(&c.ID, &c.DocumentID, &c.Content, &c.CharStart, &c.CharEnd,
		&c.ChunkIndex, &c.TokenCount, &embedding, &c.CreatedAt)
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return c, err
}

// ListByDocument returns a document's chunks ordered by chunk index.
func (s *ChunkStore) ListByDocument(ctx context.Context, documentID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ListByNotebook returns every chunk belonging to a notebook's
// documents, ordered by document then index. Used for test sampling.
func (s *ChunkStore) ListByNotebook(ctx context.Context, notebookID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.content, c.char_start, c.char_end, c.chunk_index, c.token_count, c.embedding, c.created_at
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE d.notebook_id = $1
		ORDER BY c.document_id, c.chunk_index`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list notebook chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// GetByIDs fetches chunks by id, preserving the requested order.
func (s *ChunkStore) GetByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get chunks by ids: %w", err)
	}
	defer rows.Close()
	chunks, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	out := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func collectChunks(rows *sql.Rows) ([]model.Chunk, error) {
	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchHit is one vector search result joined to its document.
type SearchHit struct {
	Chunk    model.Chunk
	Document model.Document
	Score    float64 // 1 - cosine distance, higher is better
}

// Search runs a cosine-distance top-k scan over a notebook's embedded
// chunks and joins each hit to its document. Results come back ordered
// by ascending distance.
func (s *ChunkStore) Search(ctx context.Context, notebookID string, queryVec []float32, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	embedding := pgvector.NewVector(queryVec)

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			c.id, c.document_id, c.content, c.char_start, c.char_end, c.chunk_index, c.token_count, c.created_at,
			1 - (c.embedding <=> $1::vector) AS score,
			d.id, d.notebook_id, d.url, d.title, d.status, d.error_message, d.content_hash, d.created_at, d.updated_at
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE d.notebook_id = $2 AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1::vector
		LIMIT $3`,
		embedding, notebookID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(
			&h.Chunk.ID, &h.Chunk.DocumentID, &h.Chunk.Content, &h.Chunk.CharStart,
			&h.Chunk.CharEnd, &h.Chunk.ChunkIndex, &h.Chunk.TokenCount, &h.Chunk.CreatedAt,
			&h.Score,
			&h.Document.ID, &h.Document.NotebookID, &h.Document.URL, &h.Document.Title,
			&h.Document.Status, &h.Document.ErrorMessage, &h.Document.ContentHash,
			&h.Document.CreatedAt, &h.Document.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// CountByNotebook returns the number of chunks under a notebook.
func (s *ChunkStore) CountByNotebook(ctx context.Context, notebookID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE d.notebook_id = $1`, notebookID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notebook chunks: %w", err)
	}
	return count, nil
}
