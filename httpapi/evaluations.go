package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetpotato0/notelm/evaluation"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

type datasetResponse struct {
	ID                string    `json:"id"`
	NotebookID        string    `json:"notebook_id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	QuestionsPerChunk int       `json:"questions_per_chunk"`
	MaxChunksSample   int       `json:"max_chunks_sample"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	TestCaseCount     int       `json:"test_case_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "id")
	var req struct {
		Name              string `json:"name"`
		QuestionsPerChunk int    `json:"questions_per_chunk"`
		MaxChunksSample   int    `json:"max_chunks_sample"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.notebooks.Get(r.Context(), notebookID); err != nil {
		s.writeError(w, err)
		return
	}

	ds, err := model.NewEvaluationDataset(notebookID, req.Name, req.QuestionsPerChunk, req.MaxChunksSample)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.evaluations.SaveDataset(r.Context(), ds); err != nil {
		s.writeError(w, err)
		return
	}
	s.registry.Trigger("dataset:"+ds.ID, func(ctx context.Context) error {
		return s.generator.Generate(ctx, ds.ID)
	})
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": ds.ID})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.evaluations.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	cases, err := s.evaluations.ListTestCases(r.Context(), ds.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, datasetResponse{
		ID:                ds.ID,
		NotebookID:        ds.NotebookID,
		Name:              ds.Name,
		Status:            string(ds.Status),
		QuestionsPerChunk: ds.QuestionsPerChunk,
		MaxChunksSample:   ds.MaxChunksSample,
		ErrorMessage:      ds.ErrorMessage,
		TestCaseCount:     len(cases),
		CreatedAt:         ds.CreatedAt,
		UpdatedAt:         ds.UpdatedAt,
	})
}

type runResponse struct {
	ID           string                 `json:"id"`
	DatasetID    string                 `json:"dataset_id"`
	Status       string                 `json:"status"`
	K            int                    `json:"k"`
	Type         string                 `json:"evaluation_type"`
	Metrics      model.AggregateMetrics `json:"metrics"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func toRunResponse(run model.EvaluationRun) runResponse {
	return runResponse{
		ID:           run.ID,
		DatasetID:    run.DatasetID,
		Status:       string(run.Status),
		K:            run.K,
		Type:         string(run.Type),
		Metrics:      run.Metrics,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
}

type claimResponse struct {
	Text    string `json:"text"`
	Verdict string `json:"verdict"`
}

type resultResponse struct {
	ID                string          `json:"id"`
	TestCaseID        string          `json:"test_case_id"`
	RetrievedIDs      []string        `json:"retrieved_ids"`
	RetrievedScores   []float64       `json:"retrieved_scores"`
	Precision         float64         `json:"precision"`
	Recall            float64         `json:"recall"`
	Hit               bool            `json:"hit"`
	ReciprocalRank    float64         `json:"reciprocal_rank"`
	NDCG              float64         `json:"ndcg"`
	MAPScore          float64         `json:"map_score"`
	GeneratedAnswer   string          `json:"generated_answer,omitempty"`
	Faithfulness      float64         `json:"faithfulness"`
	AnswerRelevancy   float64         `json:"answer_relevancy"`
	CitationPrecision float64         `json:"citation_precision"`
	CitationRecall    float64         `json:"citation_recall"`
	Claims            []claimResponse `json:"claims,omitempty"`
}

func toResultResponses(results []model.TestCaseResult) []resultResponse {
	out := make([]resultResponse, 0, len(results))
	for _, r := range results {
		resp := resultResponse{
			ID:                r.ID,
			TestCaseID:        r.TestCaseID,
			RetrievedIDs:      r.RetrievedIDs,
			RetrievedScores:   r.RetrievedScores,
			Precision:         r.Precision,
			Recall:            r.Recall,
			Hit:               r.Hit,
			ReciprocalRank:    r.ReciprocalRank,
			NDCG:              r.NDCG,
			MAPScore:          r.MAPScore,
			GeneratedAnswer:   r.GeneratedAnswer,
			Faithfulness:      r.Faithfulness,
			AnswerRelevancy:   r.AnswerRelevancy,
			CitationPrecision: r.CitationPrecision,
			CitationRecall:    r.CitationRecall,
		}
		for _, c := range r.Claims {
			resp.Claims = append(resp.Claims, claimResponse{Text: c.Text, Verdict: string(c.Verdict)})
		}
		out = append(out, resp)
	}
	return out
}

type createRunRequest struct {
	K              int    `json:"k"`
	EvaluationType string `json:"evaluation_type"`
	// GenerationModel is an optional override. Runs currently answer
	// with the configured chat model.
	// TODO: thread generation_model through the runner as a per-run
	// override.
	GenerationModel string `json:"generation_model"`
}

// handleCreateRun schedules a new evaluation run over a completed
// dataset.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")
	var req createRunRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ds, err := s.evaluations.GetDataset(r.Context(), datasetID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ds.Status != model.DatasetCompleted {
		s.writeError(w, errors.InvalidStatef("dataset %s is %s, runs need a completed dataset", ds.ID, ds.Status))
		return
	}

	run, err := model.NewEvaluationRun(ds.ID, req.K, model.EvaluationType(req.EvaluationType))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.evaluations.SaveRun(r.Context(), run); err != nil {
		s.writeError(w, err)
		return
	}
	s.registry.Trigger("run:"+run.ID, func(ctx context.Context) error {
		return s.runner.Execute(ctx, run.ID)
	})
	s.writeJSON(w, http.StatusCreated, toRunResponse(run))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.evaluations.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	results, err := s.evaluations.ListResults(r.Context(), run.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cases, err := s.evaluations.ListTestCases(r.Context(), run.DatasetID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	breakdown := make(map[string]model.AggregateMetrics)
	for d, m := range evaluation.DifficultyBreakdown(cases, results) {
		breakdown[string(d)] = m
	}
	s.writeJSON(w, http.StatusOK, struct {
		runResponse
		Results             []resultResponse                  `json:"results"`
		DifficultyBreakdown map[string]model.AggregateMetrics `json:"difficulty_breakdown"`
	}{toRunResponse(run), toResultResponses(results), breakdown})
}

func (s *Server) handleCompareRuns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunIDs []string `json:"run_ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cmp, err := evaluation.Compare(r.Context(), s.evaluations, req.RunIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type comparedRun struct {
		runResponse
		Results []resultResponse `json:"results"`
	}
	runs := make([]comparedRun, 0, len(cmp.Runs))
	for _, cr := range cmp.Runs {
		runs = append(runs, comparedRun{toRunResponse(cr.Run), toResultResponses(cr.Results)})
	}
	s.writeJSON(w, http.StatusOK, struct {
		DatasetID string        `json:"dataset_id"`
		K         int           `json:"k"`
		Runs      []comparedRun `json:"runs"`
	}{cmp.DatasetID, cmp.K, runs})
}
