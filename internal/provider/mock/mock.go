package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

const embeddingDimension = 512

// canonical five-point layout on a 616x616 canvas
var layout = [5]domain.Point{
	{X: 251, Y: 272},
	{X: 364, Y: 272},
	{X: 308, Y: 336},
	{X: 262, Y: 402},
	{X: 355, Y: 402},
}

// Detector implementa provider.Detector para testes e desenvolvimento.
// Imagens de cor única não têm face.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

func (d *Detector) Detect(ctx context.Context, img image.Image) (*domain.FaceBox, error) {
	if img == nil {
		return nil, provider.ErrNilImage
	}
	if uniform(img) {
		return nil, nil
	}

	b := img.Bounds()
	return &domain.FaceBox{
		X:      b.Min.X + b.Dx()/5,
		Y:      b.Min.Y + b.Dy()/5,
		Width:  b.Dx() * 3 / 5,
		Height: b.Dy() * 3 / 5,
		Score:  0.99,
	}, nil
}

// Landmarker places the five anchors where a frontal face would have them.
type Landmarker struct{}

func NewLandmarker() *Landmarker {
	return &Landmarker{}
}

func (l *Landmarker) Landmarks(ctx context.Context, img image.Image) (*domain.LandmarkSet, error) {
	if img == nil {
		return nil, provider.ErrNilImage
	}
	if uniform(img) {
		return nil, nil
	}

	b := img.Bounds()
	sx, sy := float64(b.Dx())/616, float64(b.Dy())/616
	pts := make([]domain.Point, len(layout))
	for i, p := range layout {
		pts[i] = domain.Point{X: float64(b.Min.X) + p.X*sx, Y: float64(b.Min.Y) + p.Y*sy}
	}
	return &domain.LandmarkSet{Points: pts, Anchors: domain.FivePointAnchors}, nil
}

// Embedder gera embedding determinístico baseado no hash do tensor
type Embedder struct{}

func NewEmbedder() *Embedder {
	return &Embedder{}
}

func (e *Embedder) Embed(ctx context.Context, tensor domain.Tensor) (domain.Embedding, error) {
	if !tensor.Valid() {
		return domain.Embedding{}, domain.ErrInvalidTensor
	}
	return domain.NewEmbedding(generateEmbedding(tensor.Data()))
}

// generateEmbedding expands sha256 of the tensor into a unit vector
func generateEmbedding(data []float32) []float32 {
	h := sha256.New()
	buf := make([]byte, 4)
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		h.Write(buf)
	}
	seed := h.Sum(nil)

	embedding := make([]float32, embeddingDimension)
	block := seed
	for i := 0; i < embeddingDimension; i++ {
		if i > 0 && i%len(seed) == 0 {
			next := sha256.Sum256(block)
			block = next[:]
		}
		embedding[i] = (float32(block[i%len(block)])/255.0)*2 - 1
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}
	return embedding
}

var ErrFrameUnreadable = errors.New("mock frame unreadable")

// FrameSource serves a fixed list of frames; nil entries fail to decode.
type FrameSource struct {
	Frames []image.Image
}

func NewFrameSource(frames ...image.Image) *FrameSource {
	return &FrameSource{Frames: frames}
}

func (s *FrameSource) Open(ctx context.Context, path string) (provider.FrameReader, error) {
	return &frameReader{frames: s.Frames}, nil
}

type frameReader struct {
	frames []image.Image
}

func (r *frameReader) FrameCount() int {
	return len(r.frames)
}

func (r *frameReader) Frame(index int) (image.Image, error) {
	if index < 0 || index >= len(r.frames) || r.frames[index] == nil {
		return nil, ErrFrameUnreadable
	}
	return r.frames[index], nil
}

func (r *frameReader) Close() error {
	return nil
}

func uniform(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	r0, g0, b0, a0 := img.At(b.Min.X, b.Min.Y).RGBA()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if r != r0 || g != g0 || bl != b0 || a != a0 {
				return false
			}
		}
	}
	return true
}

var (
	_ provider.Detector    = (*Detector)(nil)
	_ provider.Landmarker  = (*Landmarker)(nil)
	_ provider.Embedder    = (*Embedder)(nil)
	_ provider.FrameSource = (*FrameSource)(nil)
)
