package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

// EvaluationStore persists datasets, test cases, runs, and results.
type EvaluationStore struct {
	db *sql.DB
}

// NewEvaluationStore creates an EvaluationStore.
func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

// SaveDataset inserts or updates a dataset.
func (s *EvaluationStore) SaveDataset(ctx context.Context, d model.EvaluationDataset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_datasets (id, notebook_id, name, status, questions_per_chunk, max_chunks_sample, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`,
		d.ID, d.NotebookID, d.Name, d.Status, d.QuestionsPerChunk, d.MaxChunksSample,
		d.ErrorMessage, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save dataset %s: %w", d.ID, err)
	}
	return nil
}

// GetDataset fetches a dataset by id.
func (s *EvaluationStore) GetDataset(ctx context.Context, id string) (model.EvaluationDataset, error) {
	var d model.EvaluationDataset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, notebook_id, name, status, questions_per_chunk, max_chunks_sample, error_message, created_at, updated_at
		FROM evaluation_datasets WHERE id = $1`, id).
		Scan(&d.ID, &d.NotebookID, &d.Name, &d.Status, &d.QuestionsPerChunk,
			&d.MaxChunksSample, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.EvaluationDataset{}, errors.NotFoundf("dataset %s", id)
	}
	if err != nil {
		return model.EvaluationDataset{}, fmt.Errorf("get dataset %s: %w", id, err)
	}
	return d, nil
}

// ListDatasetsByNotebook returns a notebook's datasets, newest first.
func (s *EvaluationStore) ListDatasetsByNotebook(ctx context.Context, notebookID string) ([]model.EvaluationDataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, notebook_id, name, status, questions_per_chunk, max_chunks_sample, error_message, created_at, updated_at
		FROM evaluation_datasets WHERE notebook_id = $1 ORDER BY created_at DESC`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []model.EvaluationDataset
	for rows.Next() {
		var d model.EvaluationDataset
		if err := rows.Scan(&d.ID, &d.NotebookID, &d.Name, &d.Status, &d.QuestionsPerChunk,
			&d.MaxChunksSample, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveTestCases inserts a batch of test cases in one transaction.
func (s *EvaluationStore) SaveTestCases(ctx context.Context, cases []model.TestCase) error {
	if len(cases) == 0 {
		return nil
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO evaluation_test_cases (id, dataset_id, question, ground_truth_chunk_ids, source_chunk_id, difficulty, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("prepare test case insert: %w", err)
		}
		defer stmt.Close()

		for _, tc := range cases {
			if _, err := stmt.ExecContext(ctx, tc.ID, tc.DatasetID, tc.Question,
				pq.Array(tc.GroundTruthChunkIDs), tc.SourceChunkID, tc.Difficulty, tc.CreatedAt); err != nil {
				return fmt.Errorf("insert test case %s: %w", tc.ID, err)
			}
		}
		return nil
	})
}

// ListTestCases returns a dataset's test cases in insertion order.
func (s *EvaluationStore) ListTestCases(ctx context.Context, datasetID string) ([]model.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, question, ground_truth_chunk_ids, source_chunk_id, difficulty, created_at
		FROM evaluation_test_cases WHERE dataset_id = $1 ORDER BY created_at`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	var out []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.DatasetID, &tc.Question,
			pq.Array(&tc.GroundTruthChunkIDs), &tc.SourceChunkID, &tc.Difficulty, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// SaveRun inserts or updates a run and its aggregate metrics.
func (s *EvaluationStore) SaveRun(ctx context.Context, r model.EvaluationRun) error {
	m := r.Metrics
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_runs (id, dataset_id, status, k, evaluation_type,
			avg_precision, avg_recall, avg_hit_rate, avg_mrr, avg_ndcg, avg_map,
			avg_faithfulness, avg_answer_relevancy, avg_citation_precision, avg_citation_recall,
			hallucination_rate, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			avg_precision = EXCLUDED.avg_precision,
			avg_recall = EXCLUDED.avg_recall,
			avg_hit_rate = EXCLUDED.avg_hit_rate,
			avg_mrr = EXCLUDED.avg_mrr,
			avg_ndcg = EXCLUDED.avg_ndcg,
			avg_map = EXCLUDED.avg_map,
			avg_faithfulness = EXCLUDED.avg_faithfulness,
			avg_answer_relevancy = EXCLUDED.avg_answer_relevancy,
			avg_citation_precision = EXCLUDED.avg_citation_precision,
			avg_citation_recall = EXCLUDED.avg_citation_recall,
			hallucination_rate = EXCLUDED.hallucination_rate,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`,
		r.ID, r.DatasetID, r.Status, r.K, r.Type,
		m.Precision, m.Recall, m.HitRate, m.MRR, m.NDCG, m.MAP,
		m.Faithfulness, m.AnswerRelevancy, m.CitationPrecision, m.CitationRecall,
		m.HallucinationRate, r.ErrorMessage, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

const runColumns = `id, dataset_id, status, k, evaluation_type,
	avg_precision, avg_recall, avg_hit_rate, avg_mrr, avg_ndcg, avg_map,
	avg_faithfulness, avg_answer_relevancy, avg_citation_precision, avg_citation_recall,
	hallucination_rate, error_message, created_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (model.EvaluationRun, error) {
	var r model.EvaluationRun
	err := row.Scan(&r.ID, &r.DatasetID, &r.Status, &r.K, &r.Type,
		&r.Metrics.Precision, &r.Metrics.Recall, &r.Metrics.HitRate, &r.Metrics.MRR,
		&r.Metrics.NDCG, &r.Metrics.MAP, &r.Metrics.Faithfulness, &r.Metrics.AnswerRelevancy,
		&r.Metrics.CitationPrecision, &r.Metrics.CitationRecall, &r.Metrics.HallucinationRate,
		&r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// GetRun fetches a run by id.
func (s *EvaluationStore) GetRun(ctx context.Context, id string) (model.EvaluationRun, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM evaluation_runs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return model.EvaluationRun{}, errors.NotFoundf("evaluation run %s", id)
	}
	if err != nil {
		return model.EvaluationRun{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// GetRuns fetches several runs by id, preserving the requested order.
func (s *EvaluationStore) GetRuns(ctx context.Context, ids []string) ([]model.EvaluationRun, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM evaluation_runs WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get runs: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.EvaluationRun, len(ids))
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		byID[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.EvaluationRun, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, errors.NotFoundf("evaluation run %s", id)
		}
		out = append(out, r)
	}
	return out, nil
}

// ListRunsByDataset returns a dataset's runs, newest first.
func (s *EvaluationStore) ListRunsByDataset(ctx context.Context, datasetID string) ([]model.EvaluationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM evaluation_runs WHERE dataset_id = $1 ORDER BY created_at DESC`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []model.EvaluationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveResult persists one per-case result. Claims go in as JSONB.
func (s *EvaluationStore) SaveResult(ctx context.Context, r model.TestCaseResult) error {
	var claims any
	if r.Claims != nil {
		b, err := json.Marshal(r.Claims)
		if err != nil {
			return fmt.Errorf("marshal claims for result %s: %w", r.ID, err)
		}
		claims = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluation_test_case_results (id, run_id, test_case_id, retrieved_ids, retrieved_scores,
			precision_score, recall, hit, reciprocal_rank, ndcg, map_score,
			generated_answer, faithfulness, answer_relevancy, citation_precision, citation_recall,
			claims, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		r.ID, r.RunID, r.TestCaseID, pq.Array(r.RetrievedIDs), pq.Array(r.RetrievedScores),
		r.Precision, r.Recall, r.Hit, r.ReciprocalRank, r.NDCG, r.MAPScore,
		r.GeneratedAnswer, r.Faithfulness, r.AnswerRelevancy, r.CitationPrecision, r.CitationRecall,
		claims, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.ID, err)
	}
	return nil
}

// ListResults returns a run's per-case results in insertion order.
func (s *EvaluationStore) ListResults(ctx context.Context, runID string) ([]model.TestCaseResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, test_case_id, retrieved_ids, retrieved_scores,
			precision_score, recall, hit, reciprocal_rank, ndcg, map_score,
			generated_answer, faithfulness, answer_relevancy, citation_precision, citation_recall,
			claims, created_at
		FROM evaluation_test_case_results WHERE run_id = $1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []model.TestCaseResult
	for rows.Next() {
		var r model.TestCaseResult
		var claims []byte
		if err := rows.Scan(&r.ID, &r.RunID, &r.TestCaseID,
			pq.Array(&r.RetrievedIDs), pq.Array(&r.RetrievedScores),
			&r.Precision, &r.Recall, &r.Hit, &r.ReciprocalRank, &r.NDCG, &r.MAPScore,
			&r.GeneratedAnswer, &r.Faithfulness, &r.AnswerRelevancy,
			&r.CitationPrecision, &r.CitationRecall, &claims, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if len(claims) > 0 {
			if err := json.Unmarshal(claims, &r.Claims); err != nil {
				return nil, fmt.Errorf("unmarshal claims for result %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
