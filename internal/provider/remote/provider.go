package remote

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/faceverify/internal/domain"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/provider"
)

// Embedder implements provider.Embedder against a remote inference server
type Embedder struct {
	client *Client
	config Config
}

func NewEmbedder(config Config) *Embedder {
	return &Embedder{
		client: NewClient(config),
		config: config,
	}
}

func (e *Embedder) Embed(ctx context.Context, tensor domain.Tensor) (domain.Embedding, error) {
	if !tensor.Valid() {
		return domain.Embedding{}, domain.ErrInvalidTensor
	}

	shape := tensor.Shape()
	req := InferRequest{
		ID: domain.CorrelationIDFrom(ctx),
		Inputs: []InferTensor{{
			Name:     e.config.InputName,
			Shape:    []int64{int64(shape[0]), int64(shape[1]), int64(shape[2]), int64(shape[3])},
			Datatype: "FP32",
			Data:     tensor.Data(),
		}},
	}
	if e.config.OutputName != "" {
		req.Outputs = []OutputSpec{{Name: e.config.OutputName}}
	}

	resp, err := e.client.Infer(ctx, req)
	if err != nil {
		return domain.Embedding{}, fmt.Errorf("remote embed: %w", err)
	}

	out, err := e.pickOutput(resp)
	if err != nil {
		return domain.Embedding{}, err
	}

	emb, err := domain.NewEmbeddingFromOutput(out.Data, out.Shape)
	if err != nil {
		return domain.Embedding{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return emb, nil
}

func (e *Embedder) Ready(ctx context.Context) error {
	return e.client.Ready(ctx)
}

func (e *Embedder) pickOutput(resp *InferResponse) (*InferTensor, error) {
	if len(resp.Outputs) == 0 {
		return nil, ErrNoOutput
	}
	if e.config.OutputName == "" {
		return &resp.Outputs[0], nil
	}
	for i := range resp.Outputs {
		if resp.Outputs[i].Name == e.config.OutputName {
			return &resp.Outputs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNoOutput, e.config.OutputName)
}

var _ provider.Embedder = (*Embedder)(nil)
