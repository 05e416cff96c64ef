package video

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/media"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

const DefaultSamples = 5

// SampleIndices spreads n indices evenly over [0, total-1], truncating
// toward zero. Short videos produce repeated indices.
func SampleIndices(total, n int) []int {
	if total <= 0 || n <= 0 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}
	out := make([]int, n)
	last := float64(total - 1)
	for i := range out {
		out[i] = int(last * float64(i) / float64(n-1))
	}
	return out
}

type Frame struct {
	Index int
	Image *image.RGBA
}

type Sampler struct {
	source  provider.FrameSource
	samples int
	logger  *slog.Logger
}

func NewSampler(source provider.FrameSource, samples int, logger *slog.Logger) *Sampler {
	if samples <= 0 {
		samples = DefaultSamples
	}
	return &Sampler{source: source, samples: samples, logger: logger}
}

func (s *Sampler) Samples() int {
	return s.samples
}

// Extract decodes the sampled frames of the video at path. Frames that fail
// to decode are skipped, not retried.
func (s *Sampler) Extract(ctx context.Context, path string) ([]Frame, error) {
	reader, err := s.source.Open(ctx, path)
	if err != nil {
		return nil, domain.ErrNoFrames.WithError(err)
	}
	defer reader.Close()

	total := reader.FrameCount()
	if total <= 0 {
		return nil, domain.ErrNoFrames
	}

	indices := SampleIndices(total, s.samples)
	frames := make([]Frame, 0, len(indices))
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := reader.Frame(idx)
		if err != nil || img == nil || img.Bounds().Empty() {
			s.logger.Debug("skipping undecodable frame", "frame", idx, "error", err)
			continue
		}
		frames = append(frames, Frame{Index: idx, Image: media.ToRGBA(img)})
	}

	if len(frames) == 0 {
		return nil, domain.ErrNoValidFrames.WithError(fmt.Errorf("0 of %d sampled frames decoded", len(indices)))
	}
	return frames, nil
}
