package opencv

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/vision"
)

// LMedS parameters; reprojection threshold, iterations and confidence only
// matter to RANSAC but are passed explicitly with the method.
const (
	ransacReprojThreshold = 3.0
	maxIters              = 2000
	confidence            = 0.99
	refineIters           = 10
)

// EstimatePartialAffine fits src onto dst with OpenCV's
// estimateAffinePartial2D using least-median-of-squares. It satisfies
// vision.Estimator.
func EstimatePartialAffine(src, dst []domain.Point) (vision.Affine, error) {
	if len(src) != len(dst) || len(src) < 2 {
		return vision.Affine{}, domain.ErrAlignmentFailed.WithError(
			fmt.Errorf("need matching correspondences, got %d and %d", len(src), len(dst)))
	}

	from := gocv.NewPoint2fVectorFromPoints(toPoint2f(src))
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(toPoint2f(dst))
	defer to.Close()

	inliers := gocv.NewMat()
	defer inliers.Close()

	m := gocv.EstimateAffinePartial2DWithParams(
		from,
		to,
		inliers,
		int(gocv.HomograpyMethodLMEDS),
		ransacReprojThreshold,
		maxIters,
		confidence,
		refineIters,
	)
	defer m.Close()

	if m.Empty() || m.Rows() != 2 || m.Cols() != 3 {
		return vision.Affine{}, domain.ErrAlignmentFailed.WithError(errors.New("alignment solve failed"))
	}

	// [[a, -b, tx], [b, a, ty]]
	return vision.Affine{
		A:  m.GetDoubleAt(0, 0),
		B:  m.GetDoubleAt(1, 0),
		TX: m.GetDoubleAt(0, 2),
		TY: m.GetDoubleAt(1, 2),
	}, nil
}

func toPoint2f(pts []domain.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}
