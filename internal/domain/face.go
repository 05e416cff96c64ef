package domain

import (
	"fmt"
	"image"
)

// FaceBox é a caixa delimitadora da face principal, em pixels da imagem de origem.
type FaceBox struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Score  float32 `json:"score"`
}

func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

func (b FaceBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FivePointAnchors locates the anchors in detectors that only emit
// right eye, left eye, nose tip, right mouth corner, left mouth corner.
var FivePointAnchors = [5]int{0, 1, 2, 3, 4}

// LandmarkSet holds pixel-space landmarks plus the positions of the five
// alignment anchors inside Points.
type LandmarkSet struct {
	Points  []Point
	Anchors [5]int
}

// AnchorPoints returns right eye, left eye, nose tip, right mouth and left mouth.
func (l *LandmarkSet) AnchorPoints() ([5]Point, error) {
	var out [5]Point
	if l == nil {
		return out, fmt.Errorf("landmark set is nil")
	}
	for i, idx := range l.Anchors {
		if idx < 0 || idx >= len(l.Points) {
			return out, fmt.Errorf("anchor index %d out of range for %d landmarks", idx, len(l.Points))
		}
		out[i] = l.Points[idx]
	}
	return out, nil
}

// SimilarityResult carries the normalized score and the threshold that decided it.
type SimilarityResult struct {
	Score     float64 `json:"similarity_score"`
	IsSimilar bool    `json:"is_similar"`
	Threshold float64 `json:"threshold"`
}
