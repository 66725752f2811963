// Package retrieval turns a question into the notebook chunks most
// similar to it.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/notelm/embed"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/pkg/telemetry"
	"github.com/sweetpotato0/notelm/store"
)

// Result is one retrieved chunk joined to its document. Score is
// 1 - cosine distance, so higher is better.
type Result struct {
	Chunk    model.Chunk
	Document model.Document
	Score    float64
}

// Searcher is the vector search the retriever runs.
type Searcher interface {
	Search(ctx context.Context, notebookID string, queryVec []float32, limit int) ([]store.SearchHit, error)
}

// QueryCache remembers query embeddings across requests. Failures are
// advisory only.
type QueryCache interface {
	Get(ctx context.Context, query string) ([]float32, bool)
	Put(ctx context.Context, query string, vec []float32)
}

// Retriever embeds queries and runs the top-k scan.
type Retriever struct {
	embedder embed.Embedder
	searcher Searcher
	cache    QueryCache
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithQueryCache attaches an embedding cache.
func WithQueryCache(c QueryCache) Option {
	return func(r *Retriever) { r.cache = c }
}

// New creates a Retriever.
func New(embedder embed.Embedder, searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		searcher: searcher,
		logger:   logging.WithComponent("retrieval"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds the query once and returns up to maxChunks hits in
// descending score order. An empty notebook yields an empty result, not
// an error.
func (r *Retriever) Retrieve(ctx context.Context, notebookID, query string, maxChunks int) ([]Result, error) {
	ctx, span := telemetry.Tracer("retrieval").Start(ctx, "retriever.retrieve")
	defer span.End()

	vec, err := r.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.searcher.Search(ctx, notebookID, vec, maxChunks)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{Chunk: h.Chunk, Document: h.Document, Score: h.Score}
	}
	return results, nil
}

func (r *Retriever) queryVector(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok := r.cache.Get(ctx, query); ok {
			return vec, nil
		}
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Put(ctx, query, vec)
	}
	return vec, nil
}
