// Package answer generates grounded answers with [n] citations over
// retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sweetpotato0/notelm/llm"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/pkg/telemetry"
	"github.com/sweetpotato0/notelm/retrieval"
)

const (
	// NoInformationAnswer is returned verbatim when retrieval finds
	// nothing to ground an answer in.
	NoInformationAnswer = "I don't have any sources in this notebook that address your question. Try adding relevant documents first."

	maxHistoryExchanges = 5
	maxHistoryChars     = 500
	snippetLength       = 200
)

// Citation points one [n] marker back to its source chunk.
type Citation struct {
	Index         int    `json:"citation_index"`
	DocumentID    string `json:"document_id"`
	ChunkID       string `json:"chunk_id"`
	DocumentTitle string `json:"document_title"`
	DocumentURL   string `json:"document_url"`
	CharStart     int    `json:"char_start"`
	CharEnd       int    `json:"char_end"`
	Snippet       string `json:"snippet"`
}

// Answer is the generated text with its resolved citations.
type Answer struct {
	Text        string     `json:"answer"`
	Citations   []Citation `json:"citations"`
	SourcesUsed int        `json:"sources_used"`
}

// Answerer prompts an LLM over retrieved sources.
type Answerer struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// New creates an Answerer using the given chat model.
func New(provider llm.Provider, chatModel string) *Answerer {
	return &Answerer{
		provider: provider,
		model:    chatModel,
		logger:   logging.WithComponent("answer"),
	}
}

const systemPrompt = `You are a research assistant answering questions from a private notebook.
Rules:
- Answer using ONLY the numbered sources provided.
- Attach a citation marker like [1] or [2] to every factual claim, matching the source number.
- If the sources do not cover the question, say so plainly instead of guessing.
- Use [1], [2], ... formatting for citations, nothing else.`

// Generate answers the question over the retrieved chunks. An empty
// retrieval yields the fixed no-information answer with no citations.
func (a *Answerer) Generate(ctx context.Context, question string, retrieved []retrieval.Result, history []model.Message) (Answer, error) {
	ctx, span := telemetry.Tracer("answer").Start(ctx, "answerer.generate")
	defer span.End()

	if len(retrieved) == 0 {
		return Answer{Text: NoInformationAnswer, SourcesUsed: 0}, nil
	}

	prompt := a.buildPrompt(question, retrieved, history)
	text, err := a.provider.Chat(ctx, a.model, systemPrompt, prompt)
	if err != nil {
		return Answer{}, err
	}

	citations := extractCitations(text, retrieved)
	a.logger.Debug("answer generated",
		"sources", len(retrieved), "citations", len(citations))
	return Answer{
		Text:        text,
		Citations:   citations,
		SourcesUsed: len(retrieved),
	}, nil
}

func (a *Answerer) buildPrompt(question string, retrieved []retrieval.Result, history []model.Message) string {
	var sb strings.Builder

	if transcript := formatHistory(history); transcript != "" {
		sb.WriteString("Previous conversation:\n")
		sb.WriteString(transcript)
		sb.WriteString("\n")
	}

	sb.WriteString("Sources:\n")
	for i, r := range retrieved {
		title := r.Document.Title
		if title == "" {
			title = r.Document.URL
		}
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, title, r.Document.URL, r.Chunk.Content)
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

// formatHistory keeps the last few exchanges, capping each message so a
// long conversation cannot crowd out the sources.
func formatHistory(history []model.Message) string {
	if len(history) == 0 {
		return ""
	}
	keep := maxHistoryExchanges * 2
	if len(history) > keep {
		history = history[len(history)-keep:]
	}
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, truncate(m.Content, maxHistoryChars))
	}
	return sb.String()
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// extractCitations resolves [n] markers against the retrieved sources,
// ordered by first mention with duplicates and out-of-range indices
// dropped.
func extractCitations(text string, retrieved []retrieval.Result) []Citation {
	seen := make(map[int]struct{})
	var citations []Citation
	for _, match := range citationPattern.FindAllStringSubmatch(text, -1) {
		k, err := strconv.Atoi(match[1])
		if err != nil || k < 1 || k > len(retrieved) {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		r := retrieved[k-1]
		citations = append(citations, Citation{
			Index:         k,
			DocumentID:    r.Document.ID,
			ChunkID:       r.Chunk.ID,
			DocumentTitle: r.Document.Title,
			DocumentURL:   r.Document.URL,
			CharStart:     r.Chunk.CharStart,
			CharEnd:       r.Chunk.CharEnd,
			Snippet:       snippet(r.Chunk.Content),
		})
	}
	return citations
}

func snippet(content string) string {
	return truncate(content, snippetLength)
}

// truncate cuts s to at most max bytes, backing off to the previous
// rune boundary so the result stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
