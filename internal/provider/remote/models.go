package remote

// InferRequest for POST /v2/models/{model}/infer (KServe v2 REST protocol)
type InferRequest struct {
	ID      string        `json:"id,omitempty"`
	Inputs  []InferTensor `json:"inputs"`
	Outputs []OutputSpec  `json:"outputs,omitempty"`
}

type InferTensor struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"` // "FP32"
	Data     []float32 `json:"data"`
}

type OutputSpec struct {
	Name string `json:"name"`
}

// InferResponse from POST /v2/models/{model}/infer
type InferResponse struct {
	ID           string        `json:"id,omitempty"`
	ModelName    string        `json:"model_name"`
	ModelVersion string        `json:"model_version,omitempty"`
	Outputs      []InferTensor `json:"outputs"`
}
