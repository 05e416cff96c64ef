package vision

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// CanvasSize is the side of the square aligned canvas.
const CanvasSize = 616

// Template holds the canonical positions of right eye, left eye, nose tip,
// right mouth corner and left mouth corner on the aligned canvas.
var Template = [5]domain.Point{
	{X: 251, Y: 272},
	{X: 364, Y: 272},
	{X: 308, Y: 336},
	{X: 262, Y: 402},
	{X: 355, Y: 402},
}

// AlignedFace can only be produced by Align.
type AlignedFace struct {
	image     *image.RGBA
	landmarks *domain.LandmarkSet
	transform Affine
}

func (a *AlignedFace) Image() *image.RGBA { return a.image }

func (a *AlignedFace) Landmarks() *domain.LandmarkSet { return a.landmarks }

func (a *AlignedFace) Transform() Affine { return a.transform }

// Estimator fits src onto dst with a partial affine transform.
type Estimator func(src, dst []domain.Point) (Affine, error)

// Align fits the five anchors onto Template with EstimatePartialAffine.
func Align(img *image.RGBA, landmarks *domain.LandmarkSet) (*AlignedFace, error) {
	return AlignWith(img, landmarks, EstimatePartialAffine)
}

// AlignWith fits the five anchors onto Template using estimate, warps img
// onto a black CanvasSize square and maps every landmark through the same
// transform.
func AlignWith(img *image.RGBA, landmarks *domain.LandmarkSet, estimate Estimator) (*AlignedFace, error) {
	anchors, err := landmarks.AnchorPoints()
	if err != nil {
		return nil, domain.ErrNoLandmarks.WithError(err)
	}

	m, err := estimate(anchors[:], Template[:])
	if err != nil {
		return nil, err
	}
	if !m.valid() {
		return nil, domain.ErrAlignmentFailed.WithError(fmt.Errorf("degenerate transform %+v", m))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	// point-sampled bilinear like warpAffine; draw.BiLinear would area-filter
	// when the face is downscaled
	draw.ApproxBiLinear.Transform(canvas, pixelCenterMatrix(m), img, img.Bounds(), draw.Src, nil)

	pts := make([]domain.Point, len(landmarks.Points))
	for i, p := range landmarks.Points {
		pts[i] = m.Apply(p)
	}

	return &AlignedFace{
		image:     canvas,
		landmarks: &domain.LandmarkSet{Points: pts, Anchors: landmarks.Anchors},
		transform: m,
	}, nil
}

// pixelCenterMatrix converts m, which maps pixel indices, into the
// source-to-destination matrix x/image/draw expects, where pixel (i, j)
// is centred at (i+0.5, j+0.5).
func pixelCenterMatrix(m Affine) f64.Aff3 {
	return f64.Aff3{
		m.A, -m.B, m.TX + 0.5 - 0.5*(m.A-m.B),
		m.B, m.A, m.TY + 0.5 - 0.5*(m.A+m.B),
	}
}
