package opencv

import (
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// YuNet row: x, y, w, h, re_x, re_y, le_x, le_y, nt_x, nt_y, rcm_x, rcm_y, lcm_x, lcm_y, score
const yunetColumns = 15

type detection struct {
	x, y, w, h float32
	points     [5]domain.Point
	score      float32
}

// bestDetection returns the highest scoring row, or nil when rows is empty.
func bestDetection(rows [][]float32) *detection {
	var best *detection
	for _, row := range rows {
		if len(row) < yunetColumns {
			continue
		}
		d := &detection{
			x:     row[0],
			y:     row[1],
			w:     row[2],
			h:     row[3],
			score: row[14],
		}
		for i := range d.points {
			d.points[i] = domain.Point{X: float64(row[4+2*i]), Y: float64(row[5+2*i])}
		}
		if best == nil || d.score > best.score {
			best = d
		}
	}
	return best
}

// box is relative to the Mat, which always starts at the image origin.
func (d *detection) box(bounds image.Rectangle) domain.FaceBox {
	r := image.Rect(
		int(math.Floor(float64(d.x))),
		int(math.Floor(float64(d.y))),
		int(math.Ceil(float64(d.x+d.w))),
		int(math.Ceil(float64(d.y+d.h))),
	).Add(bounds.Min).Intersect(bounds)

	return domain.FaceBox{
		X:      r.Min.X,
		Y:      r.Min.Y,
		Width:  r.Dx(),
		Height: r.Dy(),
		Score:  d.score,
	}
}

func (d *detection) landmarks(bounds image.Rectangle) *domain.LandmarkSet {
	pts := make([]domain.Point, len(d.points))
	for i, p := range d.points {
		pts[i] = domain.Point{X: p.X + float64(bounds.Min.X), Y: p.Y + float64(bounds.Min.Y)}
	}
	return &domain.LandmarkSet{Points: pts, Anchors: domain.FivePointAnchors}
}
