package domain

import (
	"fmt"
	"math"
)

const (
	TensorChannels = 3
	TensorSize     = 112
)

// TensorShape is the only input shape the embedding backbone accepts.
var TensorShape = [4]int{1, TensorChannels, TensorSize, TensorSize}

// Tensor is a preprocessed (1, 3, 112, 112) float32 face crop in CHW layout.
type Tensor struct {
	data []float32
}

// NewTensor validates shape and value range. Any violation is an error.
func NewTensor(data []float32) (Tensor, error) {
	want := TensorShape[0] * TensorShape[1] * TensorShape[2] * TensorShape[3]
	if len(data) != want {
		return Tensor{}, ErrInvalidTensor.WithError(fmt.Errorf("got %d values, want %d", len(data), want))
	}
	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || f < -1 || f > 1 {
			return Tensor{}, ErrInvalidTensor.WithError(fmt.Errorf("value %v at %d outside [-1, 1]", v, i))
		}
	}
	return Tensor{data: data}, nil
}

func (t Tensor) Shape() [4]int {
	return TensorShape
}

// Data exposes the backing slice for inference engines; callers must not modify it.
func (t Tensor) Data() []float32 {
	return t.data
}

func (t Tensor) Valid() bool {
	return len(t.data) == TensorShape[0]*TensorShape[1]*TensorShape[2]*TensorShape[3]
}
