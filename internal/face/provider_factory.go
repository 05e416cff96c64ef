package face

import (
	"context"
	"errors"
	"fmt"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/config"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider/onnx"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider/opencv"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider/rekognition"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider/remote"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/vision"
)

// DetectorBackend selects where detection and landmarks come from
type DetectorBackend string

const (
	// DetectorOpenCV runs YuNet locally (production)
	DetectorOpenCV DetectorBackend = "opencv"
	// DetectorRekognition delegates to AWS Rekognition DetectFaces
	DetectorRekognition DetectorBackend = "rekognition"
	// DetectorMock is deterministic, for dev/test
	DetectorMock DetectorBackend = "mock"
)

// EmbedderBackend selects the embedding backbone runtime
type EmbedderBackend string

const (
	EmbedderONNX   EmbedderBackend = "onnx"
	EmbedderRemote EmbedderBackend = "remote"
	EmbedderMock   EmbedderBackend = "mock"
)

// Providers bundles every model-backed dependency of the comparison pipeline.
type Providers struct {
	Detector   provider.Detector
	Landmarker provider.Landmarker
	Embedder   provider.Embedder
	Frames     provider.FrameSource
	// Estimator fits the alignment transform; nil keeps the pure Go solver
	Estimator vision.Estimator
	// Remote is set when the embedder runs out of process
	Remote provider.Readier

	closers []provider.Closer
}

// Close releases native resources held by the providers
func (p *Providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewProviders builds the providers selected by configuration
//
// Environment variables:
//   - DETECTOR_BACKEND: "opencv", "rekognition" or "mock" (default: "opencv")
//   - EMBEDDER_BACKEND: "onnx", "remote" or "mock" (default: "onnx")
//   - DETECTOR_MODEL_PATH / EMBEDDER_MODEL_PATH: model files for local backends
//   - REMOTE_EMBEDDER_URL / REMOTE_EMBEDDER_MODEL: inference server for "remote"
//   - AWS_REGION: AWS region for Rekognition (credentials via the SDK chain)
func NewProviders(ctx context.Context, cfg *config.Config) (*Providers, error) {
	p := &Providers{}

	if err := p.setDetector(ctx, cfg); err != nil {
		return nil, err
	}
	if err := p.setEmbedder(cfg); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Providers) setDetector(ctx context.Context, cfg *config.Config) error {
	switch DetectorBackend(cfg.DetectorBackend) {
	case DetectorOpenCV, "":
		ocvCfg := opencv.DefaultConfig()
		ocvCfg.ModelPath = cfg.DetectorModelPath
		yunet, err := opencv.NewYuNet(ocvCfg)
		if err != nil {
			return fmt.Errorf("create opencv detector: %w", err)
		}
		p.Detector, p.Landmarker = yunet, yunet
		p.Frames = opencv.NewVideoSource()
		p.Estimator = opencv.EstimatePartialAffine
		p.closers = append(p.closers, yunet)

	case DetectorRekognition:
		rekogCfg := rekognition.DefaultConfig()
		rekogCfg.Region = cfg.AWSRegion
		prov, err := rekognition.NewProvider(ctx, rekogCfg)
		if err != nil {
			return fmt.Errorf("create rekognition detector: %w", err)
		}
		p.Detector, p.Landmarker = prov, prov
		p.Frames = opencv.NewVideoSource()
		p.Estimator = opencv.EstimatePartialAffine

	case DetectorMock:
		p.Detector = mock.NewDetector()
		p.Landmarker = mock.NewLandmarker()
		// videos are still decoded; only the models are faked
		p.Frames = opencv.NewVideoSource()

	default:
		return fmt.Errorf("unknown detector backend: %s (supported: %s, %s, %s)",
			cfg.DetectorBackend, DetectorOpenCV, DetectorRekognition, DetectorMock)
	}
	return nil
}

func (p *Providers) setEmbedder(cfg *config.Config) error {
	switch EmbedderBackend(cfg.EmbedderBackend) {
	case EmbedderONNX, "":
		emb, err := onnx.NewEmbedder(onnx.Config{
			ModelPath:   cfg.EmbedderModelPath,
			LibraryPath: cfg.ONNXRuntimeLibPath,
		})
		if err != nil {
			return fmt.Errorf("create onnx embedder: %w", err)
		}
		p.Embedder = emb
		p.closers = append(p.closers, emb)

	case EmbedderRemote:
		remoteCfg := remote.DefaultConfig()
		if cfg.RemoteEmbedderURL != "" {
			remoteCfg.BaseURL = cfg.RemoteEmbedderURL
		}
		if cfg.RemoteEmbedderModel != "" {
			remoteCfg.Model = cfg.RemoteEmbedderModel
		}
		emb := remote.NewEmbedder(remoteCfg)
		p.Embedder, p.Remote = emb, emb

	case EmbedderMock:
		p.Embedder = mock.NewEmbedder()

	default:
		return fmt.Errorf("unknown embedder backend: %s (supported: %s, %s, %s)",
			cfg.EmbedderBackend, EmbedderONNX, EmbedderRemote, EmbedderMock)
	}
	return nil
}
