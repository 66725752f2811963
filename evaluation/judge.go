package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/notelm/llm"
	"github.com/sweetpotato0/notelm/metrics"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/logging"
)

// Judgment is the LLM judge's view of one generated answer.
type Judgment struct {
	Faithfulness      float64
	AnswerRelevancy   float64
	CitationPrecision float64
	CitationRecall    float64
	Claims            []model.Claim
}

// Judge scores generated answers against their retrieved context. All
// scores clamp to [0,1]; any model or parse failure yields zeros rather
// than an error, since a bad judge reply must not fail the run.
type Judge struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// NewJudge creates a Judge using the given model.
func NewJudge(provider llm.Provider, evalModel string) *Judge {
	return &Judge{
		provider: provider,
		model:    evalModel,
		logger:   logging.WithComponent("judge"),
	}
}

const judgePrompt = `You grade an answer produced from numbered sources.

Question:
%s

Sources:
%s

Answer:
%s

Reply with a JSON object:
{
  "faithfulness": <0..1, how grounded the answer is in the sources>,
  "answer_relevancy": <0..1, how well it addresses the question>,
  "citation_precision": <0..1, fraction of citation markers that point at supporting sources>,
  "citation_recall": <0..1, fraction of factual claims carrying a correct citation>,
  "claims": [{"text": "...", "verdict": "supported|partially_supported|contradicted|fabricated|unverifiable"}, ...]
}`

type judgeReply struct {
	Faithfulness      float64 `json:"faithfulness"`
	AnswerRelevancy   float64 `json:"answer_relevancy"`
	CitationPrecision float64 `json:"citation_precision"`
	CitationRecall    float64 `json:"citation_recall"`
	Claims            []struct {
		Text    string `json:"text"`
		Verdict string `json:"verdict"`
	} `json:"claims"`
}

// Score judges one answer. Context is the numbered source block the
// answer was generated from.
func (j *Judge) Score(ctx context.Context, question, sources, answerText string) Judgment {
	prompt := fmt.Sprintf(judgePrompt, question, sources, answerText)
	reply, err := j.provider.Chat(ctx, j.model, "", prompt)
	if err != nil {
		j.logger.Warn("judge call failed, scoring zero", "error", err)
		return Judgment{}
	}

	var parsed judgeReply
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		j.logger.Warn("unparseable judge reply, scoring zero", "error", err)
		return Judgment{}
	}

	out := Judgment{
		Faithfulness:      metrics.Clamp01(parsed.Faithfulness),
		AnswerRelevancy:   metrics.Clamp01(parsed.AnswerRelevancy),
		CitationPrecision: metrics.Clamp01(parsed.CitationPrecision),
		CitationRecall:    metrics.Clamp01(parsed.CitationRecall),
	}
	for _, c := range parsed.Claims {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		out.Claims = append(out.Claims, model.Claim{
			Text:    text,
			Verdict: parseVerdict(c.Verdict),
		})
	}
	return out
}

func parseVerdict(s string) model.ClaimVerdict {
	switch model.ClaimVerdict(strings.ToLower(strings.TrimSpace(s))) {
	case model.ClaimSupported:
		return model.ClaimSupported
	case model.ClaimPartiallySupported:
		return model.ClaimPartiallySupported
	case model.ClaimContradicted:
		return model.ClaimContradicted
	case model.ClaimFabricated:
		return model.ClaimFabricated
	}
	return model.ClaimUnverifiable
}

// HallucinationRate is the fraction of claims judged contradicted or
// fabricated, over every claim in the run.
func HallucinationRate(results []model.TestCaseResult) float64 {
	total, bad := 0, 0
	for _, r := range results {
		for _, c := range r.Claims {
			total++
			if c.Verdict == model.ClaimContradicted || c.Verdict == model.ClaimFabricated {
				bad++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}
