// Package ingest drives a document from PENDING to COMPLETED or FAILED:
// extract, chunk, embed, then commit the document and its chunk set in
// one transaction.
package ingest

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/notelm/background"
	"github.com/sweetpotato0/notelm/chunking"
	"github.com/sweetpotato0/notelm/embed"
	"github.com/sweetpotato0/notelm/extract"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/pkg/telemetry"
)

// embedBatchSize is how many chunk texts go to the embedder per call.
const embedBatchSize = 10

// DocumentStore is the slice of the persistence layer the pipeline needs.
type DocumentStore interface {
	Get(ctx context.Context, id string) (model.Document, error)
	Update(ctx context.Context, d model.Document) error
	CompleteWithChunks(ctx context.Context, d model.Document, chunks []model.Chunk) error
}

// Pipeline runs the ingestion steps for one document at a time.
type Pipeline struct {
	documents DocumentStore
	extractor extract.Extractor
	chunker   *chunking.Chunker
	embedder  embed.Embedder
	logger    *slog.Logger
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(documents DocumentStore, extractor extract.Extractor, chunker *chunking.Chunker, embedder embed.Embedder) *Pipeline {
	return &Pipeline{
		documents: documents,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		logger:    logging.WithComponent("ingest"),
	}
}

// Process ingests the document with the given id. A non-terminal
// failure in any stage moves the document to FAILED with the failure
// message; the returned error then describes the same failure.
func (p *Pipeline) Process(ctx context.Context, documentID string) error {
	ctx, span := telemetry.Tracer("ingest").Start(ctx, "pipeline.process")
	defer span.End()

	doc, err := p.documents.Get(ctx, documentID)
	if err != nil {
		return err
	}

	doc, err = doc.StartProcessing()
	if err != nil {
		return err
	}
	if err := p.documents.Update(ctx, doc); err != nil {
		return err
	}

	chunks, content, err := p.run(ctx, doc)
	if err == nil {
		err = p.commit(ctx, doc, content, chunks)
	}
	if err != nil {
		p.logger.Error("ingestion failed", "document_id", doc.ID, "url", doc.URL, "error", err)
		failed, ferr := doc.Fail(err.Error())
		if ferr != nil {
			return ferr
		}
		if uerr := p.documents.Update(ctx, failed); uerr != nil {
			return uerr
		}
		return err
	}

	p.logger.Info("document ingested",
		"document_id", doc.ID, "url", doc.URL,
		"chunks", len(chunks), "words", content.WordCount)
	return nil
}

// commit records the COMPLETED document and its chunk set atomically.
// A commit error feeds the same FAILED path as any earlier stage, so
// the document never sticks in PROCESSING.
func (p *Pipeline) commit(ctx context.Context, doc model.Document, content extract.ExtractedContent, chunks []model.Chunk) error {
	completed, err := doc.Complete(content.Title, content.ContentHash)
	if err != nil {
		return err
	}
	return p.documents.CompleteWithChunks(ctx, completed, chunks)
}

func (p *Pipeline) run(ctx context.Context, doc model.Document) ([]model.Chunk, extract.ExtractedContent, error) {
	content, err := p.extractor.Extract(ctx, doc.URL)
	if err != nil {
		return nil, extract.ExtractedContent{}, err
	}

	pieces := p.chunker.Chunk(content.Content)
	chunks := make([]model.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, model.NewChunk(doc.ID, piece.Content,
			piece.CharStart, piece.CharEnd, piece.Index, piece.TokenCount))
	}

	if err := p.embedAll(ctx, chunks); err != nil {
		return nil, extract.ExtractedContent{}, err
	}
	return chunks, content, nil
}

// embedAll fills embeddings in place, batching requests.
func (p *Pipeline) embedAll(ctx context.Context, chunks []model.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, vec := range vectors {
			chunks[start+i] = chunks[start+i].WithEmbedding(vec)
		}
	}
	return nil
}

// Service layers idempotent background execution on top of the pipeline.
type Service struct {
	pipeline *Pipeline
	registry *background.Registry
}

// NewService creates an ingestion service over the given registry.
func NewService(pipeline *Pipeline, registry *background.Registry) *Service {
	return &Service{pipeline: pipeline, registry: registry}
}

// Trigger schedules background ingestion for the document. A document
// already being processed is not scheduled again.
func (s *Service) Trigger(documentID string) bool {
	return s.registry.Trigger("ingest:"+documentID, func(ctx context.Context) error {
		return s.pipeline.Process(ctx, documentID)
	})
}
