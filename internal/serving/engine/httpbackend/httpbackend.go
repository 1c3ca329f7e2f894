// Package httpbackend implements engine.Backend as a thin HTTP client
// against an out-of-process inference runtime, adapted from the platform's
// httpServingClient conventions: a pooled *http.Client with a bounded
// timeout, JSON request/response bodies, and HTTP-status-to-error mapping.
// This is the one concrete Backend this repository ships; the inference
// runtime itself (the model math) is out of scope and lives behind this
// HTTP boundary.
package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine"
)

// Config holds the tunables for one backend connection.
type Config struct {
	// BaseURL addresses the runtime, e.g. "http://triton:8000".
	BaseURL string
	// RequestTimeout bounds every Load/Infer round trip. Zero uses 30s.
	RequestTimeout time.Duration
	// MaxIdleConnsPerHost sizes the transport's connection pool. Zero uses 10.
	MaxIdleConnsPerHost int
}

// Backend implements engine.Backend by delegating Load and Infer to an
// external runtime's HTTP API. One Backend is shared by every model and
// version loaded against the same runtime; modelRoot/version select the
// artifact on each call.
type Backend struct {
	baseURL string
	client  *http.Client
}

// New builds a Backend from Config.
func New(cfg Config) *Backend {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	poolSize := cfg.MaxIdleConnsPerHost
	if poolSize == 0 {
		poolSize = 10
	}
	return &Backend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: poolSize,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// loadResponse mirrors the runtime's model-metadata endpoint shape.
type loadResponse struct {
	Inputs  []fieldWire      `json:"inputs"`
	Outputs []fieldWire      `json:"outputs"`
	Keys    engine.ModelKeys `json:"keys"`
}

type fieldWire struct {
	Name  string  `json:"name"`
	DType string  `json:"dtype"`
	Shape []int64 `json:"shape"`
}

func toSchema(fields []fieldWire) engine.IOSchema {
	out := engine.IOSchema{Fields: make([]engine.SchemaField, len(fields))}
	for i, f := range fields {
		out.Fields[i] = engine.SchemaField{Name: f.Name, DType: f.DType, Shape: f.Shape}
	}
	return out
}

// Load fetches the signature of modelRoot's given version from the runtime.
func (b *Backend) Load(ctx context.Context, modelRoot string, version int64) (engine.IOSchema, engine.IOSchema, engine.ModelKeys, error) {
	endpoint := fmt.Sprintf("%s/v1/repository/%s/versions/%d/metadata", b.baseURL, modelRoot, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return engine.IOSchema{}, engine.IOSchema{}, engine.ModelKeys{}, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return engine.IOSchema{}, engine.IOSchema{}, engine.ModelKeys{}, fmt.Errorf("backend load: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return engine.IOSchema{}, engine.IOSchema{}, engine.ModelKeys{}, fmt.Errorf("backend load: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return engine.IOSchema{}, engine.IOSchema{}, engine.ModelKeys{}, fmt.Errorf("backend load: runtime returned %d: %s", resp.StatusCode, string(body))
	}

	var lr loadResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return engine.IOSchema{}, engine.IOSchema{}, engine.ModelKeys{}, fmt.Errorf("backend load: unmarshal metadata: %w", err)
	}
	return toSchema(lr.Inputs), toSchema(lr.Outputs), lr.Keys, nil
}

// tensorWire is the JSON wire shape for one named tensor.
type tensorWire struct {
	DType string    `json:"dtype"`
	Shape []int64   `json:"shape"`
	Data  []float64 `json:"data"`
}

type inferRequest struct {
	Inputs    map[string]tensorWire `json:"inputs"`
	BatchSize int                   `json:"batch_size"`
}

type inferResponse struct {
	Outputs map[string]tensorWire `json:"outputs"`
}

// Infer posts the named input tensors to the runtime and decodes its output
// tensors. It does not address modelRoot/version directly — the runtime is
// expected to route by whatever session or connection identifies the model
// already loaded via Load; this mirrors TF Serving's own per-connection
// session affinity.
func (b *Backend) Infer(ctx context.Context, named map[string]engine.Tensor, batchSize int) (map[string]engine.Tensor, error) {
	wireIn := make(map[string]tensorWire, len(named))
	for name, t := range named {
		wireIn[name] = tensorWire{DType: t.DType, Shape: t.Shape, Data: t.Data}
	}

	payload, err := json.Marshal(inferRequest{Inputs: wireIn, BatchSize: batchSize})
	if err != nil {
		return nil, fmt.Errorf("backend infer: marshal request: %w", err)
	}

	endpoint := b.baseURL + "/v1/infer"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend infer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend infer: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend infer: runtime returned %d: %s", resp.StatusCode, string(body))
	}

	var ir inferResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, fmt.Errorf("backend infer: unmarshal response: %w", err)
	}

	out := make(map[string]engine.Tensor, len(ir.Outputs))
	for name, t := range ir.Outputs {
		out[name] = engine.Tensor{DType: t.DType, Shape: t.Shape, Data: t.Data}
	}
	return out, nil
}

// Close releases the backend's idle connections. The runtime itself keeps
// running independently of this process.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

var _ engine.Backend = (*Backend)(nil)
