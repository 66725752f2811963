// Package evaluation generates synthetic test datasets, runs them
// against the retrieval and RAG stack, and aggregates the metrics.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/sweetpotato0/notelm/llm"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
	"github.com/sweetpotato0/notelm/pkg/logging"
)

// ChunkSampler lists the chunks questions are generated from.
type ChunkSampler interface {
	ListByNotebook(ctx context.Context, notebookID string) ([]model.Chunk, error)
}

// DatasetStore is the persistence slice the generator needs.
type DatasetStore interface {
	GetDataset(ctx context.Context, id string) (model.EvaluationDataset, error)
	SaveDataset(ctx context.Context, d model.EvaluationDataset) error
	SaveTestCases(ctx context.Context, cases []model.TestCase) error
}

// Generator turns sampled chunks into question/ground-truth test cases.
type Generator struct {
	store    DatasetStore
	chunks   ChunkSampler
	provider llm.Provider
	model    string
	seed     int64
	logger   *slog.Logger
}

// NewGenerator creates a Generator. The seed fixes the chunk sample so
// a dataset is reproducible.
func NewGenerator(store DatasetStore, chunks ChunkSampler, provider llm.Provider, evalModel string, seed int64) *Generator {
	return &Generator{
		store:    store,
		chunks:   chunks,
		provider: provider,
		model:    evalModel,
		seed:     seed,
		logger:   logging.WithComponent("evaluation"),
	}
}

const questionPrompt = `You write evaluation questions for a retrieval system.
Given a passage, produce %d self-contained questions that can be answered
using only that passage. No yes/no questions. Reply with a JSON object:
{"questions": [{"text": "...", "difficulty": "factual|analytical|inferential|paraphrased|multi_hop"}, ...]}

Passage:
%s`

// questionList tolerates both the bare-string and the object form the
// model may answer with.
type questionList struct {
	Questions []questionEntry `json:"questions"`
}

type questionEntry struct {
	Text       string
	Difficulty string
}

func (q *questionEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		q.Text = s
		return nil
	}
	var obj struct {
		Text       string `json:"text"`
		Question   string `json:"question"`
		Difficulty string `json:"difficulty"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	q.Text = obj.Text
	if q.Text == "" {
		q.Text = obj.Question
	}
	q.Difficulty = obj.Difficulty
	return nil
}

// Generate fills the dataset with synthetic test cases. The dataset
// moves GENERATING -> COMPLETED, or FAILED with the failure message.
func (g *Generator) Generate(ctx context.Context, datasetID string) error {
	ds, err := g.store.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}
	ds, err = ds.StartGenerating()
	if err != nil {
		return err
	}
	if err := g.store.SaveDataset(ctx, ds); err != nil {
		return err
	}

	cases, genErr := g.buildCases(ctx, ds)
	if genErr == nil {
		genErr = g.finish(ctx, ds, cases)
	}
	if genErr != nil {
		g.logger.Error("dataset generation failed", "dataset_id", ds.ID, "error", genErr)
		failed, ferr := ds.FailGeneration(genErr.Error())
		if ferr != nil {
			return ferr
		}
		if serr := g.store.SaveDataset(ctx, failed); serr != nil {
			return serr
		}
		return genErr
	}

	g.logger.Info("dataset generated", "dataset_id", ds.ID, "test_cases", len(cases))
	return nil
}

// finish persists the cases and the COMPLETED status. An error here
// feeds the FAILED path so the dataset never sticks in GENERATING.
func (g *Generator) finish(ctx context.Context, ds model.EvaluationDataset, cases []model.TestCase) error {
	if err := g.store.SaveTestCases(ctx, cases); err != nil {
		return err
	}
	completed, err := ds.CompleteGeneration()
	if err != nil {
		return err
	}
	return g.store.SaveDataset(ctx, completed)
}

func (g *Generator) buildCases(ctx context.Context, ds model.EvaluationDataset) ([]model.TestCase, error) {
	chunks, err := g.chunks.ListByNotebook(ctx, ds.NotebookID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errors.Validationf("notebook %s has no chunks to sample", ds.NotebookID)
	}

	sampled := sampleChunks(chunks, ds.MaxChunksSample, g.seed)

	var cases []model.TestCase
	for _, chunk := range sampled {
		questions, err := g.questionsFor(ctx, chunk, ds.QuestionsPerChunk)
		if err != nil {
			return nil, err
		}
		for _, q := range questions {
			if q.Text == "" {
				continue
			}
			cases = append(cases, model.NewTestCase(
				ds.ID, q.Text, chunk.ID, model.ParseDifficulty(q.Difficulty)))
		}
	}
	if len(cases) == 0 {
		return nil, errors.ExternalServicef("model produced no usable questions for dataset %s", ds.ID)
	}
	return cases, nil
}

func (g *Generator) questionsFor(ctx context.Context, chunk model.Chunk, perChunk int) ([]questionEntry, error) {
	prompt := fmt.Sprintf(questionPrompt, perChunk, chunk.Content)
	reply, err := g.provider.Chat(ctx, g.model, "", prompt)
	if err != nil {
		return nil, err
	}
	var list questionList
	if err := llm.DecodeJSON(reply, &list); err != nil {
		g.logger.Warn("unparseable question reply, skipping chunk",
			"chunk_id", chunk.ID, "error", err)
		return nil, nil
	}
	if len(list.Questions) > perChunk {
		list.Questions = list.Questions[:perChunk]
	}
	return list.Questions, nil
}

// sampleChunks picks up to max chunks uniformly at random with a fixed
// seed, preserving nothing of the input order.
func sampleChunks(chunks []model.Chunk, max int, seed int64) []model.Chunk {
	if len(chunks) <= max {
		out := make([]model.Chunk, len(chunks))
		copy(out, chunks)
		return out
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(chunks))
	out := make([]model.Chunk, 0, max)
	for _, idx := range perm[:max] {
		out = append(out, chunks[idx])
	}
	return out
}
