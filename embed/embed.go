// Package embed converts text into fixed-dimension vectors.
package embed

import "context"

// Embedder produces embeddings; EmbedBatch is order-preserving.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
