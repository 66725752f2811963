package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sweetpotato0/notelm/answer"
	"github.com/sweetpotato0/notelm/metrics"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/pkg/telemetry"
	"github.com/sweetpotato0/notelm/retrieval"
)

// RunStore is the persistence slice the runner needs.
type RunStore interface {
	GetRun(ctx context.Context, id string) (model.EvaluationRun, error)
	SaveRun(ctx context.Context, r model.EvaluationRun) error
	GetDataset(ctx context.Context, id string) (model.EvaluationDataset, error)
	ListTestCases(ctx context.Context, datasetID string) ([]model.TestCase, error)
	SaveResult(ctx context.Context, r model.TestCaseResult) error
	ListResults(ctx context.Context, runID string) ([]model.TestCaseResult, error)
}

// Retriever runs the top-k search for each question.
type Retriever interface {
	Retrieve(ctx context.Context, notebookID, query string, maxChunks int) ([]retrieval.Result, error)
}

// Answerer generates the answer judged in full_rag runs.
type Answerer interface {
	Generate(ctx context.Context, question string, retrieved []retrieval.Result, history []model.Message) (answer.Answer, error)
}

// Runner executes evaluation runs case by case.
type Runner struct {
	store     RunStore
	retriever Retriever
	answerer  Answerer
	judge     *Judge
	logger    *slog.Logger
}

// NewRunner wires a Runner. The answerer and judge are only consulted
// for full_rag runs.
func NewRunner(store RunStore, retriever Retriever, answerer Answerer, judge *Judge) *Runner {
	return &Runner{
		store:     store,
		retriever: retriever,
		answerer:  answerer,
		judge:     judge,
		logger:    logging.WithComponent("evaluation"),
	}
}

// Execute runs one evaluation run to completion. A mid-run failure
// marks the run FAILED; results persisted before the failure stay
// visible.
func (r *Runner) Execute(ctx context.Context, runID string) error {
	ctx, span := telemetry.Tracer("evaluation").Start(ctx, "runner.execute")
	defer span.End()

	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	run, err = run.Start()
	if err != nil {
		return err
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return err
	}

	results, runErr := r.runCases(ctx, run)
	if runErr == nil {
		runErr = r.complete(ctx, run, results)
	}
	if runErr != nil {
		r.logger.Error("evaluation run failed", "run_id", run.ID, "error", runErr)
		failed, ferr := run.Fail(runErr.Error())
		if ferr != nil {
			return ferr
		}
		if serr := r.store.SaveRun(ctx, failed); serr != nil {
			return serr
		}
		return runErr
	}

	r.logger.Info("evaluation run completed", "run_id", run.ID, "cases", len(results))
	return nil
}

// complete aggregates and persists the COMPLETED run. An error here
// feeds the FAILED path so the run never sticks in RUNNING.
func (r *Runner) complete(ctx context.Context, run model.EvaluationRun, results []model.TestCaseResult) error {
	completed, err := run.Complete(Aggregate(results))
	if err != nil {
		return err
	}
	return r.store.SaveRun(ctx, completed)
}

func (r *Runner) runCases(ctx context.Context, run model.EvaluationRun) ([]model.TestCaseResult, error) {
	dataset, err := r.store.GetDataset(ctx, run.DatasetID)
	if err != nil {
		return nil, err
	}
	cases, err := r.store.ListTestCases(ctx, run.DatasetID)
	if err != nil {
		return nil, err
	}

	var results []model.TestCaseResult
	for _, tc := range cases {
		result, err := r.runCase(ctx, run, dataset, tc)
		if err != nil {
			return results, err
		}
		if err := r.store.SaveResult(ctx, result); err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, run model.EvaluationRun, dataset model.EvaluationDataset, tc model.TestCase) (model.TestCaseResult, error) {
	retrieved, err := r.retriever.Retrieve(ctx, dataset.NotebookID, tc.Question, run.K)
	if err != nil {
		return model.TestCaseResult{}, err
	}

	ids := make([]string, len(retrieved))
	scores := make([]float64, len(retrieved))
	for i, hit := range retrieved {
		ids[i] = hit.Chunk.ID
		scores[i] = hit.Score
	}

	relevant := tc.GroundTruthChunkIDs
	result := model.TestCaseResult{
		ID:              model.NewID(),
		RunID:           run.ID,
		TestCaseID:      tc.ID,
		RetrievedIDs:    ids,
		RetrievedScores: scores,
		Precision:       metrics.PrecisionAtK(ids, relevant, run.K),
		Recall:          metrics.RecallAtK(ids, relevant, run.K),
		Hit:             metrics.HitAtK(ids, relevant, run.K),
		ReciprocalRank:  metrics.ReciprocalRank(ids, relevant, run.K),
		NDCG:            metrics.NDCGAtK(ids, relevant, run.K),
		MAPScore:        metrics.AveragePrecisionAtK(ids, relevant, run.K),
		CreatedAt:       model.Now(),
	}

	if run.Type == model.EvaluationFullRAG {
		generated, err := r.answerer.Generate(ctx, tc.Question, retrieved, nil)
		if err != nil {
			return model.TestCaseResult{}, err
		}
		judgment := r.judge.Score(ctx, tc.Question, sourcesBlock(retrieved), generated.Text)
		result.GeneratedAnswer = generated.Text
		result.Faithfulness = judgment.Faithfulness
		result.AnswerRelevancy = judgment.AnswerRelevancy
		result.CitationPrecision = judgment.CitationPrecision
		result.CitationRecall = judgment.CitationRecall
		result.Claims = judgment.Claims
	}
	return result, nil
}

func sourcesBlock(retrieved []retrieval.Result) string {
	var sb strings.Builder
	for i, hit := range retrieved {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, hit.Document.URL, hit.Chunk.Content)
	}
	return sb.String()
}

// Aggregate computes arithmetic means over per-case metrics.
func Aggregate(results []model.TestCaseResult) model.AggregateMetrics {
	if len(results) == 0 {
		return model.AggregateMetrics{}
	}
	collect := func(f func(model.TestCaseResult) float64) float64 {
		vals := make([]float64, len(results))
		for i, r := range results {
			vals[i] = f(r)
		}
		return metrics.Mean(vals)
	}
	hits := 0
	for _, r := range results {
		if r.Hit {
			hits++
		}
	}
	return model.AggregateMetrics{
		Precision:         collect(func(r model.TestCaseResult) float64 { return r.Precision }),
		Recall:            collect(func(r model.TestCaseResult) float64 { return r.Recall }),
		HitRate:           float64(hits) / float64(len(results)),
		MRR:               collect(func(r model.TestCaseResult) float64 { return r.ReciprocalRank }),
		NDCG:              collect(func(r model.TestCaseResult) float64 { return r.NDCG }),
		MAP:               collect(func(r model.TestCaseResult) float64 { return r.MAPScore }),
		Faithfulness:      collect(func(r model.TestCaseResult) float64 { return r.Faithfulness }),
		AnswerRelevancy:   collect(func(r model.TestCaseResult) float64 { return r.AnswerRelevancy }),
		CitationPrecision: collect(func(r model.TestCaseResult) float64 { return r.CitationPrecision }),
		CitationRecall:    collect(func(r model.TestCaseResult) float64 { return r.CitationRecall }),
		HallucinationRate: HallucinationRate(results),
	}
}

// DifficultyBreakdown aggregates results per difficulty label, skipping
// test cases with no label.
func DifficultyBreakdown(cases []model.TestCase, results []model.TestCaseResult) map[model.Difficulty]model.AggregateMetrics {
	difficultyByCase := make(map[string]model.Difficulty, len(cases))
	for _, tc := range cases {
		difficultyByCase[tc.ID] = tc.Difficulty
	}
	grouped := make(map[model.Difficulty][]model.TestCaseResult)
	for _, r := range results {
		d := difficultyByCase[r.TestCaseID]
		if d == "" {
			continue
		}
		grouped[d] = append(grouped[d], r)
	}
	out := make(map[model.Difficulty]model.AggregateMetrics, len(grouped))
	for d, rs := range grouped {
		out[d] = Aggregate(rs)
	}
	return out
}
