package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

var (
	ErrDimensionMismatch = errors.New("embeddings have different dimensions")
	ErrZeroNorm          = errors.New("embedding has zero norm")
)

// Cosine returns the raw cosine similarity in [-1, 1]. Singleton batch
// dimensions are already squeezed out by domain.NewEmbeddingFromOutput.
func Cosine(a, b domain.Embedding) (float64, error) {
	if a.Len() != b.Len() {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Len(), b.Len())
	}
	if a.Len() == 0 {
		return 0, domain.ErrEmptyEmbedding
	}

	var dot, na, nb float64
	for i := 0; i < a.Len(); i++ {
		x, y := float64(a.At(i)), float64(b.At(i))
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroNorm
	}

	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, s)), nil
}

// Normalize maps a raw cosine score from [-1, 1] into [0, 1].
func Normalize(raw float64) float64 {
	return math.Max(0, math.Min(1, (raw+1)/2))
}

// Decide applies the threshold inclusively.
func Decide(score, threshold float64) domain.SimilarityResult {
	return domain.SimilarityResult{
		Score:     score,
		IsSimilar: score >= threshold,
		Threshold: threshold,
	}
}

// Compare is Cosine, Normalize and Decide in one step.
func Compare(a, b domain.Embedding, threshold float64) (domain.SimilarityResult, error) {
	raw, err := Cosine(a, b)
	if err != nil {
		return domain.SimilarityResult{}, err
	}
	return Decide(Normalize(raw), threshold), nil
}

// Mean is the unweighted arithmetic mean.
func Mean(scores []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.New("no scores to aggregate")
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), nil
}
