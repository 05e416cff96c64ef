package opencv

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(x, y, w, h, score float32) []float32 {
	return []float32{
		x, y, w, h,
		x + 0.3*w, y + 0.4*h,
		x + 0.7*w, y + 0.4*h,
		x + 0.5*w, y + 0.6*h,
		x + 0.35*w, y + 0.8*h,
		x + 0.65*w, y + 0.8*h,
		score,
	}
}

func TestBestDetection(t *testing.T) {
	tests := []struct {
		name      string
		rows      [][]float32
		wantNil   bool
		wantScore float32
	}{
		{name: "no rows", rows: nil, wantNil: true},
		{name: "short row ignored", rows: [][]float32{{1, 2, 3}}, wantNil: true},
		{
			name:      "highest score wins",
			rows:      [][]float32{row(0, 0, 10, 10, 0.7), row(5, 5, 20, 20, 0.95), row(1, 1, 5, 5, 0.8)},
			wantScore: 0.95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bestDetection(tt.rows)

			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantScore, got.score)
		})
	}
}

func TestDetectionBox(t *testing.T) {
	d := bestDetection([][]float32{row(-4.5, 10.2, 40, 30.5, 0.9)})
	require.NotNil(t, d)

	box := d.box(image.Rect(0, 0, 30, 100))

	assert.Equal(t, 0, box.X)
	assert.Equal(t, 10, box.Y)
	assert.Equal(t, 30, box.Width)
	assert.Equal(t, 31, box.Height)
	assert.Equal(t, float32(0.9), box.Score)
}

func TestDetectionLandmarks(t *testing.T) {
	d := bestDetection([][]float32{row(10, 20, 100, 100, 0.9)})
	require.NotNil(t, d)

	set := d.landmarks(image.Rect(0, 0, 200, 200))
	anchors, err := set.AnchorPoints()

	require.NoError(t, err)
	assert.InDelta(t, 40, anchors[0].X, 1e-4)
	assert.InDelta(t, 60, anchors[0].Y, 1e-4)
	assert.InDelta(t, 80, anchors[1].X, 1e-4)
	assert.InDelta(t, 60, anchors[2].X, 1e-4)
	assert.InDelta(t, 100, anchors[4].Y, 1e-4)
}
