package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

var ErrFrameRead = errors.New("frame could not be read")

// VideoSource opens staged video files with gocv.VideoCapture.
type VideoSource struct{}

var _ provider.FrameSource = VideoSource{}

func NewVideoSource() VideoSource {
	return VideoSource{}
}

func (VideoSource) Open(ctx context.Context, path string) (provider.FrameReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video: capture not opened")
	}
	return &videoReader{
		capture: capture,
		count:   int(capture.Get(gocv.VideoCaptureFrameCount)),
	}, nil
}

type videoReader struct {
	capture *gocv.VideoCapture
	count   int
}

func (r *videoReader) FrameCount() int {
	return r.count
}

// Frame seeks to index and decodes one frame as RGBA.
func (r *videoReader) Frame(index int) (image.Image, error) {
	if index < 0 || index >= r.count {
		return nil, fmt.Errorf("%w: index %d out of range", ErrFrameRead, index)
	}
	r.capture.Set(gocv.VideoCapturePosFrames, float64(index))

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := r.capture.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("%w: index %d", ErrFrameRead, index)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameRead, err)
	}
	return img, nil
}

func (r *videoReader) Close() error {
	return r.capture.Close()
}
