package opencv

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

// Config holds YuNet detector settings
type Config struct {
	ModelPath      string
	ScoreThreshold float32
	NMSThreshold   float32
	TopK           int
}

func DefaultConfig() Config {
	return Config{
		ScoreThreshold: 0.6,
		NMSThreshold:   0.3,
		TopK:           5000,
	}
}

// YuNet wraps gocv.FaceDetectorYN. One detection yields both the face box
// and the five anchors, so the same instance serves as Detector and Landmarker.
// The underlying detector is not goroutine safe.
type YuNet struct {
	mu       sync.Mutex
	detector gocv.FaceDetectorYN
}

var (
	_ provider.Detector   = (*YuNet)(nil)
	_ provider.Landmarker = (*YuNet)(nil)
	_ provider.Closer     = (*YuNet)(nil)
)

func NewYuNet(cfg Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yunet model %q: %w", cfg.ModelPath, err)
	}

	// input size is reset per image before every Detect
	detector := gocv.NewFaceDetectorYN(cfg.ModelPath, "", image.Pt(320, 320))
	detector.SetScoreThreshold(cfg.ScoreThreshold)
	detector.SetNMSThreshold(cfg.NMSThreshold)
	detector.SetTopK(cfg.TopK)

	return &YuNet{detector: detector}, nil
}

func (y *YuNet) Detect(ctx context.Context, img image.Image) (*domain.FaceBox, error) {
	det, err := y.best(ctx, img)
	if err != nil || det == nil {
		return nil, err
	}
	box := det.box(img.Bounds())
	if box.Empty() {
		return nil, nil
	}
	return &box, nil
}

func (y *YuNet) Landmarks(ctx context.Context, img image.Image) (*domain.LandmarkSet, error) {
	det, err := y.best(ctx, img)
	if err != nil || det == nil {
		return nil, err
	}
	return det.landmarks(img.Bounds()), nil
}

func (y *YuNet) best(ctx context.Context, img image.Image) (*detection, error) {
	if img == nil {
		return nil, provider.ErrNilImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image to mat: %w", err)
	}
	defer mat.Close()

	faces := gocv.NewMat()
	defer faces.Close()

	y.mu.Lock()
	y.detector.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))
	y.detector.Detect(mat, &faces)
	y.mu.Unlock()

	return bestDetection(matRows(faces)), nil
}

func (y *YuNet) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
	return nil
}

func matRows(m gocv.Mat) [][]float32 {
	if m.Empty() || m.Cols() < yunetColumns {
		return nil
	}
	rows := make([][]float32, m.Rows())
	for i := range rows {
		row := make([]float32, yunetColumns)
		for j := range row {
			row[j] = m.GetFloatAt(i, j)
		}
		rows[i] = row
	}
	return rows
}
