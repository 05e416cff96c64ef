package provider

import (
	"context"
	"errors"
	"image"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
)

// ErrNilImage is returned before any model call when the input image is missing.
var ErrNilImage = errors.New("input image is nil")

// Detector localiza a face principal na imagem.
type Detector interface {
	// Detect returns the most confident face in pixel coordinates of img,
	// or nil when no face is present.
	Detect(ctx context.Context, img image.Image) (*domain.FaceBox, error)
}

// Landmarker extrai landmarks faciais em pixels da imagem de entrada.
type Landmarker interface {
	// Landmarks returns nil when no landmarks are found.
	Landmarks(ctx context.Context, img image.Image) (*domain.LandmarkSet, error)
}

// Embedder mapeia um tensor pré-processado para um embedding.
type Embedder interface {
	Embed(ctx context.Context, tensor domain.Tensor) (domain.Embedding, error)
}

// FrameSource gives random access to the frames of a staged video file.
type FrameSource interface {
	Open(ctx context.Context, path string) (FrameReader, error)
}

type FrameReader interface {
	// FrameCount may be an estimate; zero means no frames.
	FrameCount() int
	// Frame decodes the frame at index; an error means the frame is unusable.
	Frame(index int) (image.Image, error)
	Close() error
}

// Readier is implemented by backends reached over the network.
type Readier interface {
	Ready(ctx context.Context) error
}

// Closer is implemented by providers holding native resources.
type Closer interface {
	Close() error
}
