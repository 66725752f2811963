package model

import "time"

// Chunk is a contiguous substring of a document's extracted text with
// exact [CharStart, CharEnd) offsets into that text. The stored content
// must always satisfy text[CharStart:CharEnd] == Content for the
// document's most recently extracted text.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	CharStart  int
	CharEnd    int
	ChunkIndex int
	TokenCount int
	Embedding  []float32
	CreatedAt  time.Time
}

// NewChunk creates a chunk owned by the given document.
func NewChunk(documentID, content string, charStart, charEnd, index, tokenCount int) Chunk {
	return Chunk{
		ID:         NewID(),
		DocumentID: documentID,
		Content:    content,
		CharStart:  charStart,
		CharEnd:    charEnd,
		ChunkIndex: index,
		TokenCount: tokenCount,
		CreatedAt:  Now(),
	}
}

// WithEmbedding returns a copy carrying the given vector.
func (c Chunk) WithEmbedding(vec []float32) Chunk {
	c.Embedding = vec
	return c
}
