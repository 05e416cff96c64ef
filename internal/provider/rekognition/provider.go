package rekognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	jpegQuality  = 95
)

// Provider implements provider.Detector and provider.Landmarker using the
// AWS Rekognition DetectFaces API. Rekognition only exposes sparse landmarks,
// so the landmark set carries exactly the five alignment anchors.
type Provider struct {
	client *Client
	logger *slog.Logger
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

// WithLogger sets the logger used for per-call diagnostics
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

var (
	_ provider.Detector   = (*Provider)(nil)
	_ provider.Landmarker = (*Provider)(nil)
)

// NewProvider creates a Rekognition-backed detector
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return newProvider(client, opts...), nil
}

func newProvider(client *Client, opts ...ProviderOption) *Provider {
	p := &Provider{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Detect returns the most confident face above MinConfidence, or nil
func (p *Provider) Detect(ctx context.Context, img image.Image) (*domain.FaceBox, error) {
	detail, err := p.bestFace(ctx, img)
	if err != nil || detail == nil {
		return nil, err
	}

	box, ok := pixelBox(detail.BoundingBox, img.Bounds())
	if !ok {
		return nil, nil
	}
	box.Score = aws.ToFloat32(detail.Confidence) / 100
	return &box, nil
}

// Landmarks returns the five anchors of the most confident face, or nil
func (p *Provider) Landmarks(ctx context.Context, img image.Image) (*domain.LandmarkSet, error) {
	detail, err := p.bestFace(ctx, img)
	if err != nil || detail == nil {
		return nil, err
	}

	points, ok := anchorPoints(detail.Landmarks, img.Bounds())
	if !ok {
		return nil, nil
	}
	return &domain.LandmarkSet{Points: points, Anchors: domain.FivePointAnchors}, nil
}

func (p *Provider) bestFace(ctx context.Context, img image.Image) (*types.FaceDetail, error) {
	if img == nil {
		return nil, provider.ErrNilImage
	}

	payload, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	if p.client.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.client.config.Timeout)
		defer cancel()
	}

	output, err := p.client.rekognition.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: payload},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", parseAPIError(err))
	}

	var best *types.FaceDetail
	for i := range output.FaceDetails {
		detail := &output.FaceDetails[i]
		conf := aws.ToFloat32(detail.Confidence)
		if conf < p.client.config.MinConfidence {
			continue
		}
		if best == nil || conf > aws.ToFloat32(best.Confidence) {
			best = detail
		}
	}

	p.logger.DebugContext(ctx, "rekognition detect faces",
		"faces", len(output.FaceDetails),
		"found", best != nil,
		"image_bytes", len(payload),
	)

	return best, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if buf.Len() > maxImageSize {
		return nil, fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, buf.Len(), maxImageSize)
	}
	return buf.Bytes(), nil
}

// pixelBox converts a ratio bounding box into pixels clamped to bounds
func pixelBox(bb *types.BoundingBox, bounds image.Rectangle) (domain.FaceBox, bool) {
	if bb == nil {
		return domain.FaceBox{}, false
	}

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	left := float64(aws.ToFloat32(bb.Left)) * w
	top := float64(aws.ToFloat32(bb.Top)) * h
	rect := image.Rect(
		bounds.Min.X+int(math.Round(left)),
		bounds.Min.Y+int(math.Round(top)),
		bounds.Min.X+int(math.Round(left+float64(aws.ToFloat32(bb.Width))*w)),
		bounds.Min.Y+int(math.Round(top+float64(aws.ToFloat32(bb.Height))*h)),
	).Intersect(bounds)
	if rect.Empty() {
		return domain.FaceBox{}, false
	}

	return domain.FaceBox{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}, true
}

// anchorPoints picks eyes, nose and mouth corners ordered image-left first
func anchorPoints(landmarks []types.Landmark, bounds image.Rectangle) ([]domain.Point, bool) {
	byType := make(map[types.LandmarkType]domain.Point, len(landmarks))
	for _, lm := range landmarks {
		if lm.X == nil || lm.Y == nil {
			continue
		}
		byType[lm.Type] = domain.Point{
			X: float64(bounds.Min.X) + float64(*lm.X)*float64(bounds.Dx()),
			Y: float64(bounds.Min.Y) + float64(*lm.Y)*float64(bounds.Dy()),
		}
	}

	want := []types.LandmarkType{
		types.LandmarkTypeEyeLeft,
		types.LandmarkTypeEyeRight,
		types.LandmarkTypeNose,
		types.LandmarkTypeMouthLeft,
		types.LandmarkTypeMouthRight,
	}
	points := make([]domain.Point, len(want))
	for i, t := range want {
		pt, ok := byType[t]
		if !ok {
			return nil, false
		}
		points[i] = pt
	}

	// Side naming is not a stable contract; order by x.
	eyes, mouth := points[0:2], points[3:5]
	sort.Slice(eyes, func(i, j int) bool { return eyes[i].X < eyes[j].X })
	sort.Slice(mouth, func(i, j int) bool { return mouth[i].X < mouth[j].X })

	return points, true
}
