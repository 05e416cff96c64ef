package similarity

import (
	"math"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

const DefaultThreshold = 0.5

// Threshold is the process-wide decision boundary. Readers take a snapshot
// with Load once per request; Set is the only writer path.
type Threshold struct {
	bits atomic.Uint64
}

func NewThreshold(initial float64) (*Threshold, error) {
	t := &Threshold{}
	if err := t.Set(initial); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Threshold) Load() float64 {
	return math.Float64frombits(t.bits.Load())
}

// Set rejects values outside [0, 1] and leaves the stored value unchanged.
func (t *Threshold) Set(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return domain.ErrInvalidThreshold
	}
	t.bits.Store(math.Float64bits(v))
	return nil
}
