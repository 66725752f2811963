package embed

import (
	"context"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     openaisdk.Client
	model      openaisdk.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for the given model and
// dimension. baseURL is optional and mainly useful for proxies.
func NewOpenAIEmbedder(apiKey, baseURL string, model string, dimensions int) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{
		client:     openaisdk.NewClient(opts...),
		model:      openaisdk.EmbeddingModel(model),
		dimensions: dimensions,
	}
}

// Dimensions returns the embedding dimension D.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.ExternalServicef("embeddings: no vector returned")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in order. Empty input returns empty output.
// Auth failures and rate-limit rejections surface as external-service
// errors like every other upstream failure.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model:      e.model,
		Dimensions: param.NewOpt(int64(e.dimensions)),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, errors.ExternalServicef("embeddings: create: %v", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.ExternalServicef("embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, emb := range resp.Data {
		i := int(emb.Index)
		if i < 0 || i >= len(out) {
			return nil, errors.ExternalServicef("embeddings: index %d out of range", i)
		}
		vec, err := convertVector(emb.Embedding, e.dimensions)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// convertVector narrows the response vector to float32. A dimension
// mismatch is an error, never a silent pad or truncation.
func convertVector(input []float64, want int) ([]float32, error) {
	if len(input) != want {
		return nil, errors.ExternalServicef("embeddings: got %d dimensions, want %d", len(input), want)
	}
	vec := make([]float32, want)
	for i, v := range input {
		vec[i] = float32(v)
	}
	return vec, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
