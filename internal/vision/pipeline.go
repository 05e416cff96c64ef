package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

type Order string

const (
	// LandmarkFirst aligns the full image on its landmarks, then detects and crops on the aligned canvas.
	LandmarkFirst Order = "landmark-first"
	// DetectFirst crops the detected face, then aligns the crop on its own landmarks.
	DetectFirst Order = "detect-first"
)

type PipelineConfig struct {
	Order         Order
	Margin        float64
	VerticalShift float64
	Channels      ChannelOrder
	// Estimator defaults to EstimatePartialAffine
	Estimator Estimator
}

// Pipeline turns one decoded image into the embedding input tensor.
// The ordering is fixed at construction and never mixed.
type Pipeline struct {
	detector   provider.Detector
	landmarker provider.Landmarker
	cfg        PipelineConfig
}

func NewPipeline(detector provider.Detector, landmarker provider.Landmarker, cfg PipelineConfig) (*Pipeline, error) {
	if detector == nil || landmarker == nil {
		return nil, fmt.Errorf("pipeline needs both a detector and a landmarker")
	}
	if cfg.Order != LandmarkFirst && cfg.Order != DetectFirst {
		return nil, fmt.Errorf("unknown pipeline order %q", cfg.Order)
	}
	if cfg.Channels == "" {
		cfg.Channels = ChannelsBGR
	}
	if cfg.Estimator == nil {
		cfg.Estimator = EstimatePartialAffine
	}
	return &Pipeline{detector: detector, landmarker: landmarker, cfg: cfg}, nil
}

func (p *Pipeline) Order() Order {
	return p.cfg.Order
}

func (p *Pipeline) Process(ctx context.Context, img *image.RGBA) (domain.Tensor, error) {
	if img == nil {
		return domain.Tensor{}, provider.ErrNilImage
	}

	var (
		face image.Image
		err  error
	)
	if p.cfg.Order == DetectFirst {
		face, err = p.detectFirst(ctx, img)
	} else {
		face, err = p.landmarkFirst(ctx, img)
	}
	if err != nil {
		return domain.Tensor{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.Tensor{}, err
	}
	return Preprocess(face, p.cfg.Channels)
}

func (p *Pipeline) landmarkFirst(ctx context.Context, img *image.RGBA) (image.Image, error) {
	landmarks, err := p.landmarks(ctx, img)
	if err != nil {
		return nil, err
	}

	aligned, err := AlignWith(img, landmarks, p.cfg.Estimator)
	if err != nil {
		return nil, err
	}

	box, err := p.detect(ctx, aligned.Image())
	if err != nil {
		return nil, err
	}

	return Crop(aligned.Image(), *box, p.cfg.Margin, p.cfg.VerticalShift)
}

func (p *Pipeline) detectFirst(ctx context.Context, img *image.RGBA) (image.Image, error) {
	box, err := p.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	crop, err := Crop(img, *box, p.cfg.Margin, p.cfg.VerticalShift)
	if err != nil {
		return nil, err
	}

	landmarks, err := p.landmarks(ctx, crop)
	if err != nil {
		return nil, err
	}

	aligned, err := AlignWith(crop, landmarks, p.cfg.Estimator)
	if err != nil {
		return nil, err
	}
	return aligned.Image(), nil
}

func (p *Pipeline) detect(ctx context.Context, img *image.RGBA) (*domain.FaceBox, error) {
	box, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect face: %w", err)
	}
	if box == nil || box.Empty() {
		return nil, domain.ErrNoFaceDetected
	}
	return box, nil
}

func (p *Pipeline) landmarks(ctx context.Context, img *image.RGBA) (*domain.LandmarkSet, error) {
	set, err := p.landmarker.Landmarks(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extract landmarks: %w", err)
	}
	if set == nil || len(set.Points) == 0 {
		return nil, domain.ErrNoLandmarks
	}
	return set, nil
}
