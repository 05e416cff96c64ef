package domain

import (
	"errors"
	"fmt"
)

var ErrEmptyEmbedding = errors.New("embedding is empty")

// Embedding is immutable after creation.
type Embedding struct {
	values []float32
}

// NewEmbedding copies values into a new embedding.
func NewEmbedding(values []float32) (Embedding, error) {
	if len(values) == 0 {
		return Embedding{}, ErrEmptyEmbedding
	}
	v := make([]float32, len(values))
	copy(v, values)
	return Embedding{values: v}, nil
}

// NewEmbeddingFromOutput squeezes singleton dimensions out of a model output
// such as (1, 512) or (1, 512, 1, 1).
func NewEmbeddingFromOutput(data []float32, shape []int64) (Embedding, error) {
	total := int64(1)
	wide := 0
	for _, d := range shape {
		if d <= 0 {
			return Embedding{}, fmt.Errorf("invalid output dimension %d in shape %v", d, shape)
		}
		total *= d
		if d > 1 {
			wide++
		}
	}
	if total != int64(len(data)) {
		return Embedding{}, fmt.Errorf("shape %v does not match %d values", shape, len(data))
	}
	if wide > 1 {
		return Embedding{}, fmt.Errorf("output shape %v is not a single vector", shape)
	}
	return NewEmbedding(data)
}

func (e Embedding) Len() int {
	return len(e.values)
}

// Values returns a copy.
func (e Embedding) Values() []float32 {
	out := make([]float32, len(e.values))
	copy(out, e.values)
	return out
}

// At returns the i-th component.
func (e Embedding) At(i int) float32 {
	return e.values[i]
}
