package vision

import (
	"fmt"
	"math"
	"sort"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// Affine is a partial affine (similarity) transform:
//
//	u = A*x - B*y + TX
//	v = B*x + A*y + TY
//
// i.e. uniform scale sqrt(A²+B²), rotation atan2(B, A) and a translation.
type Affine struct {
	A, B, TX, TY float64
}

func (m Affine) Apply(p domain.Point) domain.Point {
	return domain.Point{
		X: m.A*p.X - m.B*p.Y + m.TX,
		Y: m.B*p.X + m.A*p.Y + m.TY,
	}
}

// Matrix returns the 2x3 row-major form [[A, -B, TX], [B, A, TY]].
func (m Affine) Matrix() [6]float64 {
	return [6]float64{m.A, -m.B, m.TX, m.B, m.A, m.TY}
}

func (m Affine) Scale() float64 {
	return math.Hypot(m.A, m.B)
}

func (m Affine) valid() bool {
	for _, v := range [4]float64{m.A, m.B, m.TX, m.TY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return m.Scale() > 1e-9
}

const degenerateSpan = 1e-9

// EstimatePartialAffine fits src onto dst with a least-median-of-squares
// estimator followed by a least-squares refit on the inliers. Every point pair
// is tried as a minimal sample, so the result is fully deterministic.
func EstimatePartialAffine(src, dst []domain.Point) (Affine, error) {
	n := len(src)
	if n != len(dst) {
		return Affine{}, domain.ErrAlignmentFailed.WithError(fmt.Errorf("%d source points, %d target points", n, len(dst)))
	}
	if n < 2 {
		return Affine{}, domain.ErrAlignmentFailed.WithError(fmt.Errorf("need at least 2 correspondences, got %d", n))
	}
	for i := range src {
		if !finite(src[i]) || !finite(dst[i]) {
			return Affine{}, domain.ErrAlignmentFailed.WithError(fmt.Errorf("non-finite coordinate at point %d", i))
		}
	}

	best, bestMedian, found := Affine{}, math.Inf(1), false
	residuals := make([]float64, n)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			m, ok := solvePair(src[i], src[j], dst[i], dst[j])
			if !ok {
				continue
			}
			for k := range src {
				residuals[k] = squaredError(m, src[k], dst[k])
			}
			med := median(residuals)
			if med < bestMedian {
				best, bestMedian, found = m, med, true
			}
		}
	}
	if !found {
		return Affine{}, domain.ErrAlignmentFailed.WithError(fmt.Errorf("all source points coincide"))
	}

	// Robust noise estimate from the best median, as in Rousseeuw's LMedS.
	sigma := 2.5 * 1.4826 * (1 + 5.0/float64(max(n-2, 1))) * math.Sqrt(bestMedian)
	sigma = math.Max(sigma, 0.001)
	limit := sigma * sigma

	var inSrc, inDst []domain.Point
	for k := range src {
		if squaredError(best, src[k], dst[k]) <= limit {
			inSrc = append(inSrc, src[k])
			inDst = append(inDst, dst[k])
		}
	}

	result := best
	if len(inSrc) >= 2 {
		if refined, ok := leastSquares(inSrc, inDst); ok {
			result = refined
		}
	}

	if !result.valid() {
		return Affine{}, domain.ErrAlignmentFailed.WithError(fmt.Errorf("degenerate transform %+v", result))
	}
	return result, nil
}

// solvePair solves the exact similarity mapping p1->q1, p2->q2 using complex
// arithmetic: q = c*p + t with c = A + iB.
func solvePair(p1, p2, q1, q2 domain.Point) (Affine, bool) {
	zp := complex(p1.X-p2.X, p1.Y-p2.Y)
	if math.Hypot(real(zp), imag(zp)) < degenerateSpan {
		return Affine{}, false
	}
	zq := complex(q1.X-q2.X, q1.Y-q2.Y)
	c := zq / zp
	t := complex(q1.X, q1.Y) - c*complex(p1.X, p1.Y)
	return Affine{A: real(c), B: imag(c), TX: real(t), TY: imag(t)}, true
}

// leastSquares is the closed-form similarity fit minimising squared residuals.
func leastSquares(src, dst []domain.Point) (Affine, bool) {
	n := float64(len(src))
	var mx, my, mu, mv float64
	for i := range src {
		mx += src[i].X
		my += src[i].Y
		mu += dst[i].X
		mv += dst[i].Y
	}
	mx, my, mu, mv = mx/n, my/n, mu/n, mv/n

	var den, numA, numB float64
	for i := range src {
		xc, yc := src[i].X-mx, src[i].Y-my
		uc, vc := dst[i].X-mu, dst[i].Y-mv
		den += xc*xc + yc*yc
		numA += xc*uc + yc*vc
		numB += xc*vc - yc*uc
	}
	if den < degenerateSpan {
		return Affine{}, false
	}

	a, b := numA/den, numB/den
	return Affine{
		A:  a,
		B:  b,
		TX: mu - a*mx + b*my,
		TY: mv - b*mx - a*my,
	}, true
}

func squaredError(m Affine, p, q domain.Point) float64 {
	r := m.Apply(p)
	dx, dy := r.X-q.X, r.Y-q.Y
	return dx*dx + dy*dy
}

// median returns the upper median without touching the input.
func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	return s[len(s)/2]
}

func finite(p domain.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
