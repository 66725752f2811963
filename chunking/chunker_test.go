package chunking

import (
	"strings"
	"testing"
)

// runeTokenizer treats every byte as one token. Decode of any token
// suffix is the exact byte suffix, matching the BPE property the
// chunker relies on.
type runeTokenizer struct{}

func (runeTokenizer) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids
}

func (runeTokenizer) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteByte(byte(id))
	}
	return b.String()
}

func (runeTokenizer) Count(text string) int { return len(text) }

func TestChunkOffsetsAreExact(t *testing.T) {
	text := "Para one line.\nSecond line of text here.\n\nPara two starts now.\nAnd keeps going for a while longer.\n"
	c := New(runeTokenizer{}, WithChunkSize(40), WithChunkOverlap(10))

	pieces := c.Chunk(text)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(pieces))
	}
	for _, p := range pieces {
		if p.CharStart < 0 || p.CharEnd > len(text) || p.CharStart >= p.CharEnd {
			t.Fatalf("chunk %d has bad offsets [%d,%d)", p.Index, p.CharStart, p.CharEnd)
		}
		if got := text[p.CharStart:p.CharEnd]; got != p.Content {
			t.Fatalf("chunk %d: text[%d:%d] = %q, content = %q", p.Index, p.CharStart, p.CharEnd, got, p.Content)
		}
	}
}

func TestChunkIndexMonotonic(t *testing.T) {
	text := strings.Repeat("some words on a line\n", 30)
	c := New(runeTokenizer{}, WithChunkSize(60), WithChunkOverlap(15))

	pieces := c.Chunk(text)
	for i, p := range pieces {
		if p.Index != i {
			t.Fatalf("chunk at position %d has index %d", i, p.Index)
		}
	}
}

func TestChunkOverlapSharesTail(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta\n", 10)
	c := New(runeTokenizer{}, WithChunkSize(50), WithChunkOverlap(12))

	pieces := c.Chunk(text)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(pieces))
	}
	for i := 1; i < len(pieces); i++ {
		if pieces[i].CharStart >= pieces[i-1].CharEnd {
			continue // whitespace between raw spans can swallow the overlap
		}
		shared := text[pieces[i].CharStart:pieces[i-1].CharEnd]
		if !strings.HasPrefix(pieces[i].Content, strings.TrimRight(shared, " \n\t\r")) {
			t.Fatalf("chunk %d does not start with the shared tail %q", i, shared)
		}
	}
}

func TestChunkOverlapAvoidsMidWordCut(t *testing.T) {
	text := strings.Repeat("internationalization localization\n", 8)
	c := New(runeTokenizer{}, WithChunkSize(40), WithChunkOverlap(9))

	pieces := c.Chunk(text)
	for i := 1; i < len(pieces); i++ {
		start := pieces[i].CharStart
		if start > 0 && !isSpace(text[start-1]) {
			t.Fatalf("chunk %d starts mid-word at offset %d (%q)", i, start, text[start-1:start+5])
		}
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := New(runeTokenizer{})
	if pieces := c.Chunk(""); len(pieces) != 0 {
		t.Fatalf("empty input produced %d chunks", len(pieces))
	}
	if pieces := c.Chunk("  \n\t \n"); len(pieces) != 0 {
		t.Fatalf("whitespace input produced %d chunks", len(pieces))
	}
}

func TestChunkSingleSmallInput(t *testing.T) {
	text := "Para one.\n\nPara two."
	c := New(runeTokenizer{}) // default window far larger than the text

	pieces := c.Chunk(text)
	if len(pieces) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(pieces))
	}
	p := pieces[0]
	if p.Content != text {
		t.Fatalf("content = %q", p.Content)
	}
	if p.CharStart != 0 || p.CharEnd != len(text) {
		t.Fatalf("offsets [%d,%d)", p.CharStart, p.CharEnd)
	}
	if p.TokenCount != len(text) {
		t.Fatalf("token count = %d", p.TokenCount)
	}
}

func TestChunkStripsTrailingWhitespaceAdjustingEnd(t *testing.T) {
	text := "first line\nsecond line   \n\n"
	c := New(runeTokenizer{})

	pieces := c.Chunk(text)
	if len(pieces) != 1 {
		t.Fatalf("expected one chunk, got %d", len(pieces))
	}
	p := pieces[0]
	if strings.HasSuffix(p.Content, " ") || strings.HasSuffix(p.Content, "\n") {
		t.Fatalf("content keeps trailing whitespace: %q", p.Content)
	}
	if text[p.CharStart:p.CharEnd] != p.Content {
		t.Fatalf("offsets no longer match content after stripping")
	}
}

func TestChunkOversizedSingleLine(t *testing.T) {
	// One line larger than the window still becomes a chunk.
	text := strings.Repeat("x", 500)
	c := New(runeTokenizer{}, WithChunkSize(100), WithChunkOverlap(10))

	pieces := c.Chunk(text)
	if len(pieces) != 1 {
		t.Fatalf("expected one oversized chunk, got %d", len(pieces))
	}
	if pieces[0].Content != text {
		t.Fatal("oversized line content mismatch")
	}
}
