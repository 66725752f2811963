package model

import (
	"time"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

// DatasetStatus is the lifecycle state of a synthetic dataset.
type DatasetStatus string

const (
	DatasetPending    DatasetStatus = "PENDING"
	DatasetGenerating DatasetStatus = "GENERATING"
	DatasetCompleted  DatasetStatus = "COMPLETED"
	DatasetFailed     DatasetStatus = "FAILED"
)

// EvaluationDataset holds synthetic test cases generated from a
// notebook's chunks.
type EvaluationDataset struct {
	ID                string
	NotebookID        string
	Name              string
	Status            DatasetStatus
	QuestionsPerChunk int
	MaxChunksSample   int
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewEvaluationDataset creates a PENDING dataset.
func NewEvaluationDataset(notebookID, name string, questionsPerChunk, maxChunksSample int) (EvaluationDataset, error) {
	if questionsPerChunk < 1 {
		return EvaluationDataset{}, errors.Validationf("questions_per_chunk must be >= 1, got %d", questionsPerChunk)
	}
	if maxChunksSample < 1 {
		return EvaluationDataset{}, errors.Validationf("max_chunks_sample must be >= 1, got %d", maxChunksSample)
	}
	now := Now()
	return EvaluationDataset{
		ID:                NewID(),
		NotebookID:        notebookID,
		Name:              name,
		Status:            DatasetPending,
		QuestionsPerChunk: questionsPerChunk,
		MaxChunksSample:   maxChunksSample,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// StartGenerating transitions PENDING -> GENERATING.
func (d EvaluationDataset) StartGenerating() (EvaluationDataset, error) {
	if d.Status != DatasetPending {
		return d, errors.InvalidStatef("dataset %s: cannot start generating from %s", d.ID, d.Status)
	}
	d.Status = DatasetGenerating
	d.UpdatedAt = Now()
	return d, nil
}

// CompleteGeneration transitions GENERATING -> COMPLETED.
func (d EvaluationDataset) CompleteGeneration() (EvaluationDataset, error) {
	if d.Status != DatasetGenerating {
		return d, errors.InvalidStatef("dataset %s: cannot complete from %s", d.ID, d.Status)
	}
	d.Status = DatasetCompleted
	d.UpdatedAt = Now()
	return d, nil
}

// FailGeneration transitions GENERATING -> FAILED.
func (d EvaluationDataset) FailGeneration(message string) (EvaluationDataset, error) {
	if d.Status != DatasetGenerating {
		return d, errors.InvalidStatef("dataset %s: cannot fail from %s", d.ID, d.Status)
	}
	d.Status = DatasetFailed
	d.ErrorMessage = message
	d.UpdatedAt = Now()
	return d, nil
}

// Difficulty labels a synthetic question.
type Difficulty string

const (
	DifficultyFactual     Difficulty = "factual"
	DifficultyAnalytical  Difficulty = "analytical"
	DifficultyInferential Difficulty = "inferential"
	DifficultyParaphrased Difficulty = "paraphrased"
	DifficultyMultiHop    Difficulty = "multi_hop"
)

// ParseDifficulty maps a free-form label to a known difficulty;
// unknown labels map to the empty value.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyFactual, DifficultyAnalytical, DifficultyInferential, DifficultyParaphrased, DifficultyMultiHop:
		return Difficulty(s)
	}
	return ""
}

// TestCase is one synthetic question with its ground-truth chunks.
type TestCase struct {
	ID                  string
	DatasetID           string
	Question            string
	GroundTruthChunkIDs []string
	SourceChunkID       string
	Difficulty          Difficulty
	CreatedAt           time.Time
}

// NewTestCase builds a test case grounded in a single source chunk.
func NewTestCase(datasetID, question, sourceChunkID string, difficulty Difficulty) TestCase {
	return TestCase{
		ID:                  NewID(),
		DatasetID:           datasetID,
		Question:            question,
		GroundTruthChunkIDs: []string{sourceChunkID},
		SourceChunkID:       sourceChunkID,
		Difficulty:          difficulty,
		CreatedAt:           Now(),
	}
}

// EvaluationType selects what an evaluation run measures.
type EvaluationType string

const (
	EvaluationRetrievalOnly EvaluationType = "retrieval_only"
	EvaluationFullRAG       EvaluationType = "full_rag"
)

// RunStatus is the lifecycle state of an evaluation run.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// AggregateMetrics are arithmetic means over per-case metrics.
type AggregateMetrics struct {
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	HitRate           float64 `json:"hit_rate"`
	MRR               float64 `json:"mrr"`
	NDCG              float64 `json:"ndcg"`
	MAP               float64 `json:"map"`
	Faithfulness      float64 `json:"faithfulness"`
	AnswerRelevancy   float64 `json:"answer_relevancy"`
	CitationPrecision float64 `json:"citation_precision"`
	CitationRecall    float64 `json:"citation_recall"`
	HallucinationRate float64 `json:"hallucination_rate"`
}

// EvaluationRun executes a dataset against the retrieval (and optionally
// RAG) stack at a fixed k.
type EvaluationRun struct {
	ID           string
	DatasetID    string
	Status       RunStatus
	K            int
	Type         EvaluationType
	Metrics      AggregateMetrics
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewEvaluationRun creates a PENDING run.
func NewEvaluationRun(datasetID string, k int, typ EvaluationType) (EvaluationRun, error) {
	if k < 1 {
		return EvaluationRun{}, errors.Validationf("k must be >= 1, got %d", k)
	}
	if typ != EvaluationRetrievalOnly && typ != EvaluationFullRAG {
		return EvaluationRun{}, errors.Validationf("unknown evaluation type %q", typ)
	}
	now := Now()
	return EvaluationRun{
		ID:        NewID(),
		DatasetID: datasetID,
		Status:    RunPending,
		K:         k,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Start transitions PENDING -> RUNNING.
func (r EvaluationRun) Start() (EvaluationRun, error) {
	if r.Status != RunPending {
		return r, errors.InvalidStatef("run %s: cannot start from %s", r.ID, r.Status)
	}
	r.Status = RunRunning
	r.UpdatedAt = Now()
	return r, nil
}

// Complete transitions RUNNING -> COMPLETED with aggregate metrics.
func (r EvaluationRun) Complete(m AggregateMetrics) (EvaluationRun, error) {
	if r.Status != RunRunning {
		return r, errors.InvalidStatef("run %s: cannot complete from %s", r.ID, r.Status)
	}
	r.Status = RunCompleted
	r.Metrics = m
	r.UpdatedAt = Now()
	return r, nil
}

// Fail transitions RUNNING -> FAILED. Partial results persisted so far
// stay visible.
func (r EvaluationRun) Fail(message string) (EvaluationRun, error) {
	if r.Status != RunRunning {
		return r, errors.InvalidStatef("run %s: cannot fail from %s", r.ID, r.Status)
	}
	r.Status = RunFailed
	r.ErrorMessage = message
	r.UpdatedAt = Now()
	return r, nil
}

// ClaimVerdict classifies one answer claim against the retrieved context.
type ClaimVerdict string

const (
	ClaimSupported          ClaimVerdict = "supported"
	ClaimPartiallySupported ClaimVerdict = "partially_supported"
	ClaimContradicted       ClaimVerdict = "contradicted"
	ClaimFabricated         ClaimVerdict = "fabricated"
	ClaimUnverifiable       ClaimVerdict = "unverifiable"
)

// Claim is one factual statement decomposed from a generated answer.
type Claim struct {
	Text    string
	Verdict ClaimVerdict
}

// TestCaseResult is the per-case outcome of an evaluation run.
type TestCaseResult struct {
	ID              string
	RunID           string
	TestCaseID      string
	RetrievedIDs    []string
	RetrievedScores []float64

	Precision      float64
	Recall         float64
	Hit            bool
	ReciprocalRank float64
	NDCG           float64
	MAPScore       float64

	// full_rag fields
	GeneratedAnswer   string
	Faithfulness      float64
	AnswerRelevancy   float64
	CitationPrecision float64
	CitationRecall    float64
	Claims            []Claim

	CreatedAt time.Time
}
