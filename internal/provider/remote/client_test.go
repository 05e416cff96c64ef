package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	config := DefaultConfig()
	config.BaseURL = url
	config.RetryCount = 0
	config.BackoffBase = time.Millisecond
	return config
}

func TestClient_Infer(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse interface{}
		serverStatus   int
		wantErr        bool
		wantErrContain string
		validateResp   func(*testing.T, *InferResponse)
	}{
		{
			name: "successful response",
			serverResponse: InferResponse{
				ModelName: "face_embedder",
				Outputs: []InferTensor{
					{Name: "embedding", Shape: []int64{1, 4}, Datatype: "FP32", Data: []float32{0.1, 0.2, 0.3, 0.4}},
				},
			},
			serverStatus: http.StatusOK,
			validateResp: func(t *testing.T, resp *InferResponse) {
				require.NotNil(t, resp)
				require.Len(t, resp.Outputs, 1)
				assert.Equal(t, []int64{1, 4}, resp.Outputs[0].Shape)
				assert.Len(t, resp.Outputs[0].Data, 4)
			},
		},
		{
			name:           "server error 500",
			serverResponse: map[string]string{"error": "CUDA out of memory"},
			serverStatus:   http.StatusInternalServerError,
			wantErr:        true,
			wantErrContain: "inference service unavailable",
		},
		{
			name:           "bad request 400",
			serverResponse: map[string]string{"error": "unexpected shape for input 'input'"},
			serverStatus:   http.StatusBadRequest,
			wantErr:        true,
			wantErrContain: "status 400",
		},
		{
			name:           "invalid json response",
			serverResponse: "not a valid json",
			serverStatus:   http.StatusOK,
			wantErr:        true,
			wantErrContain: "invalid response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v2/models/face_embedder/infer", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req InferRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Len(t, req.Inputs, 1)
				assert.Equal(t, "FP32", req.Inputs[0].Datatype)

				w.WriteHeader(tt.serverStatus)
				if str, ok := tt.serverResponse.(string); ok {
					_, _ = w.Write([]byte(str))
				} else {
					_ = json.NewEncoder(w).Encode(tt.serverResponse)
				}
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL))
			resp, err := client.Infer(context.Background(), InferRequest{
				Inputs: []InferTensor{{Name: "input", Shape: []int64{1, 2}, Datatype: "FP32", Data: []float32{1, 2}}},
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrContain)
				return
			}

			require.NoError(t, err)
			tt.validateResp(t, resp)
		})
	}
}

func TestClient_RetryOnFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(InferResponse{Outputs: []InferTensor{{Name: "out", Shape: []int64{1}, Data: []float32{1}}}})
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RetryCount = 3

	resp, err := NewClient(config).Infer(context.Background(), InferRequest{})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, int32(3), attempts.Load(), "expected exactly 3 attempts")
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RetryCount = 3

	_, err := NewClient(config).Infer(context.Background(), InferRequest{})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_RetryRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	config := testConfig(server.URL)
	config.RetryCount = 5
	config.BackoffBase = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewClient(config).Infer(ctx, InferRequest{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_Ready(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path == "/v2/models/face_embedder/ready" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	assert.NoError(t, NewClient(testConfig(server.URL)).Ready(context.Background()))

	config := testConfig(server.URL)
	config.Model = "missing"
	assert.Error(t, NewClient(config).Ready(context.Background()))
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, calculateBackoff(time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
}
