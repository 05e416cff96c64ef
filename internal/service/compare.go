package service

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/audit"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/media"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/similarity"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/video"
)

type MediaValidator interface {
	Validate(asset *domain.MediaAsset, kind domain.MediaKind) error
}

// FacePipeline turns one decoded image into an embedding input tensor.
type FacePipeline interface {
	Process(ctx context.Context, img *image.RGBA) (domain.Tensor, error)
}

type FrameExtractor interface {
	Extract(ctx context.Context, path string) ([]video.Frame, error)
}

type VideoStager interface {
	Stage(data []byte, ext string) (string, func(), error)
}

// TaskRunner executes CPU-bound work off the request goroutine.
type TaskRunner interface {
	Run(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

type Dependencies struct {
	Validator MediaValidator
	Pipeline  FacePipeline
	Embedder  provider.Embedder
	Frames    FrameExtractor
	Store     VideoStager
	Runner    TaskRunner
	// MaxFanOut caps the frame and embedding tasks one request keeps on the
	// runner at once; set it to the pool's worker count. Defaults to 1.
	MaxFanOut int
	Audit     audit.Logger
	Logger    *slog.Logger
}

type ImageComparison struct {
	domain.SimilarityResult
}

type VideoComparison struct {
	AggregatedSimilarity float64
	IsSimilar            bool
	Threshold            float64
	Frames               []video.FrameScore
}

// ComparisonService sequences validation, alignment, embedding and scoring
// for a request. The threshold is the only state shared between requests.
type ComparisonService struct {
	deps      Dependencies
	threshold *similarity.Threshold
}

func NewComparisonService(deps Dependencies, threshold *similarity.Threshold) *ComparisonService {
	if deps.Audit == nil {
		deps.Audit = &audit.NoOpLogger{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxFanOut <= 0 {
		deps.MaxFanOut = 1
	}
	return &ComparisonService{deps: deps, threshold: threshold}
}

func (s *ComparisonService) Threshold() float64 {
	return s.threshold.Load()
}

func (s *ComparisonService) SetThreshold(ctx context.Context, value float64) error {
	if err := s.threshold.Set(value); err != nil {
		s.logger(ctx).Warn("threshold update rejected", "threshold", value)
		return err
	}

	msg := "Threshold updated to " + FormatThreshold(value)
	s.logger(ctx).Info("threshold updated", "threshold", value)
	s.audit(ctx, audit.Event{
		EventType: audit.EventThresholdUpdated,
		Message:   msg,
		Success:   true,
	})
	return nil
}

// FormatThreshold renders whole numbers with one decimal ("1.0"), matching the
// confirmation message clients already parse.
func FormatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == float64(int64(v)) {
		s += ".0"
	}
	return s
}

func (s *ComparisonService) CompareImages(ctx context.Context, first, second *domain.MediaAsset) (*ImageComparison, error) {
	result, err := s.compareImages(ctx, first, second)
	if err != nil {
		s.auditFailure(ctx, "compare images", err)
		return nil, err
	}

	s.audit(ctx, audit.Event{
		EventType: audit.EventImagesCompared,
		Message:   fmt.Sprintf("compared images %s and %s", first.Filename, second.Filename),
		Success:   true,
		Metadata: map[string]string{
			"similarity_score": strconv.FormatFloat(result.Score, 'f', 4, 64),
			"is_similar":       strconv.FormatBool(result.IsSimilar),
		},
	})
	return result, nil
}

func (s *ComparisonService) compareImages(ctx context.Context, first, second *domain.MediaAsset) (*ImageComparison, error) {
	for _, asset := range []*domain.MediaAsset{first, second} {
		if err := s.deps.Validator.Validate(asset, domain.MediaImage); err != nil {
			return nil, err
		}
	}

	log := s.logger(ctx)
	log.Info("comparing images", "image1", first.Filename, "image2", second.Filename)

	var tensors [2]domain.Tensor
	g, gctx := errgroup.WithContext(ctx)
	for i, asset := range []*domain.MediaAsset{first, second} {
		g.Go(func() error {
			t, err := s.preprocessImage(gctx, asset)
			if err != nil {
				return err
			}
			tensors[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embeddings, err := s.embedAll(ctx, tensors[:])
	if err != nil {
		return nil, err
	}

	result, err := similarity.Compare(embeddings[0], embeddings[1], s.threshold.Load())
	if err != nil {
		return nil, domain.ErrInternal.WithError(err)
	}

	log.Info("images compared", "similarity_score", result.Score, "is_similar", result.IsSimilar)
	return &ImageComparison{SimilarityResult: result}, nil
}

func (s *ComparisonService) CompareVideo(ctx context.Context, img, clip *domain.MediaAsset) (*VideoComparison, error) {
	result, err := s.compareVideo(ctx, img, clip)
	if err != nil {
		s.auditFailure(ctx, "compare video", err)
		return nil, err
	}

	s.audit(ctx, audit.Event{
		EventType: audit.EventVideoCompared,
		Message:   fmt.Sprintf("compared image %s with video %s", img.Filename, clip.Filename),
		Success:   true,
		Metadata: map[string]string{
			"aggregated_similarity": strconv.FormatFloat(result.AggregatedSimilarity, 'f', 4, 64),
			"frames_used":           strconv.Itoa(len(result.Frames)),
			"is_similar":            strconv.FormatBool(result.IsSimilar),
		},
	})
	return result, nil
}

func (s *ComparisonService) compareVideo(ctx context.Context, img, clip *domain.MediaAsset) (*VideoComparison, error) {
	if err := s.deps.Validator.Validate(img, domain.MediaImage); err != nil {
		return nil, err
	}
	if err := s.deps.Validator.Validate(clip, domain.MediaVideo); err != nil {
		return nil, err
	}

	log := s.logger(ctx)
	log.Info("comparing image with video", "image", img.Filename, "video", clip.Filename)

	path, cleanup, err := s.deps.Store.Stage(clip.Data, clip.Extension())
	if err != nil {
		return nil, domain.ErrInternal.WithError(err)
	}
	defer cleanup()

	var (
		reference domain.Tensor
		frames    []video.Frame
		tensors   []domain.Tensor
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.preprocessImage(gctx, img)
		if err != nil {
			return err
		}
		reference = t
		return nil
	})
	g.Go(func() error {
		var err error
		frames, tensors, err = s.preprocessVideo(gctx, path)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embeddings, err := s.embedAll(ctx, append([]domain.Tensor{reference}, tensors...))
	if err != nil {
		return nil, err
	}

	scores := make([]video.FrameScore, len(frames))
	for i, frame := range frames {
		raw, err := similarity.Cosine(embeddings[0], embeddings[i+1])
		if err != nil {
			return nil, domain.ErrInternal.WithError(err)
		}
		scores[i] = video.FrameScore{Index: frame.Index, Score: similarity.Normalize(raw)}
	}

	ordered, mean, err := video.Aggregate(scores)
	if err != nil {
		return nil, domain.ErrInternal.WithError(err)
	}
	decision := similarity.Decide(mean, s.threshold.Load())

	log.Info("video compared",
		"aggregated_similarity", decision.Score,
		"is_similar", decision.IsSimilar,
		"frames_used", len(ordered),
	)

	return &VideoComparison{
		AggregatedSimilarity: decision.Score,
		IsSimilar:            decision.IsSimilar,
		Threshold:            decision.Threshold,
		Frames:               ordered,
	}, nil
}

// preprocessVideo samples frames and runs the retained frames through the
// pipeline, at most MaxFanOut at a time. Any frame failure fails the whole request.
func (s *ComparisonService) preprocessVideo(ctx context.Context, path string) ([]video.Frame, []domain.Tensor, error) {
	var frames []video.Frame
	err := s.deps.Runner.Run(ctx, "extract_frames", func(ctx context.Context) error {
		var err error
		frames, err = s.deps.Frames.Extract(ctx, path)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	tensors := make([]domain.Tensor, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.MaxFanOut)
	for i, frame := range frames {
		g.Go(func() error {
			return s.deps.Runner.Run(gctx, "preprocess_frame", func(ctx context.Context) error {
				t, err := s.deps.Pipeline.Process(ctx, frame.Image)
				if err != nil {
					return fmt.Errorf("frame %d: %w", frame.Index, err)
				}
				tensors[i] = t
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return frames, tensors, nil
}

func (s *ComparisonService) preprocessImage(ctx context.Context, asset *domain.MediaAsset) (domain.Tensor, error) {
	var tensor domain.Tensor
	err := s.deps.Runner.Run(ctx, "preprocess_image", func(ctx context.Context) error {
		img, err := media.DecodeImage(asset.Data)
		if err != nil {
			return err
		}
		tensor, err = s.deps.Pipeline.Process(ctx, img)
		return err
	})
	if err != nil {
		return domain.Tensor{}, err
	}
	return tensor, nil
}

func (s *ComparisonService) embedAll(ctx context.Context, tensors []domain.Tensor) ([]domain.Embedding, error) {
	embeddings := make([]domain.Embedding, len(tensors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.MaxFanOut)
	for i, t := range tensors {
		g.Go(func() error {
			return s.deps.Runner.Run(gctx, "embed", func(ctx context.Context) error {
				e, err := s.deps.Embedder.Embed(ctx, t)
				if err != nil {
					return err
				}
				embeddings[i] = e
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (s *ComparisonService) logger(ctx context.Context) *slog.Logger {
	return s.deps.Logger.With("correlation_id", domain.CorrelationIDFrom(ctx))
}

// audit is fire-and-forget: a failing sink never fails the comparison.
func (s *ComparisonService) audit(ctx context.Context, event audit.Event) {
	event.CorrelationID = domain.CorrelationIDFrom(ctx)
	if err := s.deps.Audit.Log(context.WithoutCancel(ctx), event); err != nil {
		s.logger(ctx).Warn("audit event not recorded", "event_type", event.EventType, "error", err)
	}
}

func (s *ComparisonService) auditFailure(ctx context.Context, op string, err error) {
	s.audit(ctx, audit.Event{
		EventType: audit.EventComparisonFailed,
		Message:   op,
		Error:     err.Error(),
	})
}
