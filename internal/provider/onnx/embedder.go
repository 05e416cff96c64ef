package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

var (
	ErrNoInputs  = errors.New("model declares no inputs")
	ErrNoOutputs = errors.New("model declares no outputs")

	envOnce sync.Once
	envErr  error
)

type Config struct {
	ModelPath   string
	LibraryPath string
}

// Embedder runs a face embedding backbone with preallocated tensors.
// A session owns its buffers, so Run calls are serialized.
type Embedder struct {
	mu          sync.Mutex
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	outputShape []int64
}

var (
	_ provider.Embedder = (*Embedder)(nil)
	_ provider.Closer   = (*Embedder)(nil)
)

// initEnvironment loads the shared library once per process.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

func NewEmbedder(cfg Config) (*Embedder, error) {
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model %q: %w", cfg.ModelPath, err)
	}
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(outputs) == 0 {
		return nil, ErrNoOutputs
	}

	inShape := ort.NewShape(int64(domain.TensorShape[0]), int64(domain.TensorShape[1]), int64(domain.TensorShape[2]), int64(domain.TensorShape[3]))
	input, err := ort.NewEmptyTensor[float32](inShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outDims := concreteShape(outputs[0].Dimensions)
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(outDims...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &Embedder{
		session:     session,
		input:       input,
		output:      output,
		outputShape: outDims,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, tensor domain.Tensor) (domain.Embedding, error) {
	if !tensor.Valid() {
		return domain.Embedding{}, domain.ErrInvalidTensor
	}
	if err := ctx.Err(); err != nil {
		return domain.Embedding{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.input.GetData(), tensor.Data())
	if err := e.session.Run(); err != nil {
		return domain.Embedding{}, fmt.Errorf("run embedding: %w", err)
	}

	out := make([]float32, len(e.output.GetData()))
	copy(out, e.output.GetData())

	return domain.NewEmbeddingFromOutput(out, e.outputShape)
}

func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
		e.session = nil
	}
	if e.input != nil {
		errs = append(errs, e.input.Destroy())
		e.input = nil
	}
	if e.output != nil {
		errs = append(errs, e.output.Destroy())
		e.output = nil
	}
	return errors.Join(errs...)
}

// concreteShape replaces dynamic (non-positive) dimensions with 1.
func concreteShape(dims []int64) []int64 {
	if len(dims) == 0 {
		return []int64{1}
	}
	out := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}
