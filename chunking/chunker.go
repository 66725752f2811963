// Package chunking splits extracted text into overlapping token-bounded
// pieces while preserving exact byte offsets into the source.
package chunking

import (
	"strings"
)

// Piece is one emitted chunk. text[CharStart:CharEnd] == Content holds
// for the source text the piece was produced from.
type Piece struct {
	Content    string
	CharStart  int
	CharEnd    int
	Index      int
	TokenCount int
}

// Options configures the chunker.
type Options struct {
	ChunkSize    int // target tokens per chunk
	ChunkOverlap int // tokens shared between consecutive chunks
}

// Option customizes the chunker.
type Option func(*Options)

// WithChunkSize overrides the default chunk size (tokens).
func WithChunkSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ChunkSize = size
		}
	}
}

// WithChunkOverlap overrides the default overlap (tokens).
func WithChunkOverlap(overlap int) Option {
	return func(o *Options) {
		if overlap >= 0 {
			o.ChunkOverlap = overlap
		}
	}
}

// Chunker accumulates line segments into token windows with overlap.
type Chunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

// New creates a chunker over the given tokenizer.
func New(tok Tokenizer, opts ...Option) *Chunker {
	cfg := &Options{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 2
	}
	return &Chunker{tok: tok, size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
}

type span struct {
	start, end int
	tokens     int
}

// Chunk splits text at line boundaries, greedily packs lines into
// token-bounded windows, and prepends roughly ChunkOverlap tokens from
// the previous window to each subsequent one. Whitespace-only input
// yields no pieces.
func (c *Chunker) Chunk(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	segments := c.segment(text)

	var pieces []Piece
	cur := span{start: segments[0].start, end: segments[0].start}

	emit := func() {
		if p, ok := c.makePiece(text, cur.start, cur.end, len(pieces)); ok {
			pieces = append(pieces, p)
		}
	}

	for _, seg := range segments {
		if cur.end > cur.start && cur.tokens+seg.tokens > c.size {
			emit()
			start := c.overlapStart(text, cur.start, cur.end)
			cur = span{start: start, end: cur.end, tokens: c.tok.Count(text[start:cur.end])}
		}
		cur.end = seg.end
		cur.tokens += seg.tokens
	}
	if cur.end > cur.start {
		emit()
	}
	return pieces
}

// segment cuts text into line spans, each carrying its own token count.
// The trailing newline stays with its line so spans tile the text.
func (c *Chunker) segment(text string) []span {
	var segments []span
	start := 0
	for start < len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end = start + end + 1
		}
		segments = append(segments, span{
			start:  start,
			end:    end,
			tokens: c.tok.Count(text[start:end]),
		})
		start = end
	}
	return segments
}

// overlapStart finds the position where the overlap window of the
// window [start, end) begins: the last ChunkOverlap tokens decoded back
// to bytes, then extended leftward to the nearest whitespace so the
// window never starts mid-word.
func (c *Chunker) overlapStart(text string, start, end int) int {
	if c.overlap <= 0 {
		return end
	}
	ids := c.tok.Encode(text[start:end])
	if len(ids) <= c.overlap {
		return start
	}
	tail := c.tok.Decode(ids[len(ids)-c.overlap:])
	p := end - len(tail)
	if p < start {
		p = start
	}
	for p > start && !isSpace(text[p-1]) {
		p--
	}
	return p
}

// makePiece strips trailing whitespace by shrinking the end offset, so
// text[CharStart:CharEnd] == Content stays exact.
func (c *Chunker) makePiece(text string, start, end, index int) (Piece, bool) {
	for end > start && isSpace(text[end-1]) {
		end--
	}
	if end == start {
		return Piece{}, false
	}
	content := text[start:end]
	return Piece{
		Content:    content,
		CharStart:  start,
		CharEnd:    end,
		Index:      index,
		TokenCount: c.tok.Count(content),
	}, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
