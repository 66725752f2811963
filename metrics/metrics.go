// Package metrics implements the ranking and statistics primitives used
// by the evaluation engine. Every function is pure and total: malformed
// input yields a zero value, never an error.
package metrics

import "math"

// topK trims retrieved to at most k entries.
func topK(retrieved []string, k int) []string {
	if k <= 0 {
		return nil
	}
	if len(retrieved) > k {
		return retrieved[:k]
	}
	return retrieved
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// PrecisionAtK returns |top_k ∩ relevant| / min(k, |top_k|), or 0 when
// the truncated list is empty.
func PrecisionAtK(retrieved, relevant []string, k int) float64 {
	top := topK(retrieved, k)
	if len(top) == 0 {
		return 0
	}
	rel := toSet(relevant)
	hits := 0
	for _, id := range top {
		if _, ok := rel[id]; ok {
			hits++
		}
	}
	denom := k
	if len(top) < denom {
		denom = len(top)
	}
	return float64(hits) / float64(denom)
}

// RecallAtK returns |top_k ∩ relevant| / |relevant|, or 0 when the
// relevant set is empty or k <= 0.
func RecallAtK(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	top := topK(retrieved, k)
	rel := toSet(relevant)
	hits := 0
	for _, id := range top {
		if _, ok := rel[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// HitAtK reports whether any relevant item appears in the top k.
func HitAtK(retrieved, relevant []string, k int) bool {
	rel := toSet(relevant)
	for _, id := range topK(retrieved, k) {
		if _, ok := rel[id]; ok {
			return true
		}
	}
	return false
}

// ReciprocalRank returns 1/rank of the first relevant item within the
// top k, or 0 when none appears.
func ReciprocalRank(retrieved, relevant []string, k int) float64 {
	rel := toSet(relevant)
	for i, id := range topK(retrieved, k) {
		if _, ok := rel[id]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK computes normalized discounted cumulative gain with binary
// relevance. DCG sums 1/log2(pos+2) over relevant positions in the top
// k; IDCG assumes all relevant items rank first.
func NDCGAtK(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	rel := toSet(relevant)
	var dcg float64
	for i, id := range topK(retrieved, k) {
		if _, ok := rel[id]; ok {
			dcg += 1 / math.Log2(float64(i)+2)
		}
	}
	ideal := len(relevant)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 0; i < ideal; i++ {
		idcg += 1 / math.Log2(float64(i)+2)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// AveragePrecisionAtK computes AP@k: the mean over relevant positions
// of precision at that position, divided by |relevant|.
func AveragePrecisionAtK(retrieved, relevant []string, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	rel := toSet(relevant)
	hits := 0
	var sum float64
	for i, id := range topK(retrieved, k) {
		if _, ok := rel[id]; ok {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(len(relevant))
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// PearsonR computes the Pearson correlation coefficient. It returns
// (0, false) when fewer than 3 paired points are available or either
// side has zero variance.
func PearsonR(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < 3 {
		return 0, false
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

// Bucket classifies a test case outcome by its recall.
type Bucket string

const (
	BucketPerfect Bucket = "perfect"
	BucketMissed  Bucket = "missed"
	BucketPartial Bucket = "partial"
)

// BucketOf assigns a (recall, faithfulness, relevancy) triple to a
// quality bucket. Only recall decides the bucket; the generation scores
// ride along for reporting.
func BucketOf(recall, faithfulness, relevancy float64) Bucket {
	switch {
	case recall == 1:
		return BucketPerfect
	case recall == 0:
		return BucketMissed
	default:
		return BucketPartial
	}
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Clamp01 clamps v into [0, 1]; NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
