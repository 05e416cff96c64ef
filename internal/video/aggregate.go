package video

import (
	"sort"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/similarity"
)

type FrameScore struct {
	Index int     `json:"frame"`
	Score float64 `json:"similarity_score"`
}

// Aggregate orders scores by frame index and returns their unweighted mean.
func Aggregate(scores []FrameScore) ([]FrameScore, float64, error) {
	ordered := append([]FrameScore(nil), scores...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	values := make([]float64, len(ordered))
	for i, s := range ordered {
		values[i] = s.Score
	}
	mean, err := similarity.Mean(values)
	if err != nil {
		return nil, 0, err
	}
	return ordered, mean, nil
}
