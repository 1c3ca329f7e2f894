// Package engine implements the Engine Handle (C3): a wrapper around one
// loaded model version exposing metadata and infer, with an in-use counter
// and drain condition that make unload safe without serializing inference.
package engine

import (
	"context"
	"sync"

	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// SchemaField describes one named tensor slot: its client-facing name,
// declared dtype, and shape. Grounded on the tensor descriptor shape used
// throughout the platform's model-serving code.
type SchemaField struct {
	Name  string
	DType string
	Shape []int64
}

// IOSchema is an ordered set of tensor descriptors.
type IOSchema struct {
	Fields []SchemaField
}

// ModelKeys maps client-facing tensor names to the backend's internal
// signature names, separately for inputs and outputs.
type ModelKeys struct {
	Inputs  map[string]string
	Outputs map[string]string
}

// Tensor is a named, typed, shaped payload exchanged with a Backend.
type Tensor struct {
	DType string
	Shape []int64
	Data  []float64
}

// Backend is the out-of-scope inference-runtime collaborator named in §1: it
// loads a model artifact from a directory, answers metadata queries, and
// executes infer. This repository implements only the interface plus an
// in-memory fake for tests; a real Backend is any of triton/torchserve/onnx
// style adapters external to this engine.
type Backend interface {
	Load(ctx context.Context, modelRoot string, version int64) (inputs, outputs IOSchema, keys ModelKeys, err error)
	Infer(ctx context.Context, named map[string]Tensor, batchSize int) (map[string]Tensor, error)
	Close() error
}

// Handle wraps one loaded model version. Its descriptors are immutable once
// constructed; only the in-use counter changes over the handle's life.
type Handle struct {
	backend Backend

	inputs  IOSchema
	outputs IOSchema
	keys    ModelKeys

	mu       sync.Mutex
	inUse    int
	drainCh  chan struct{} // closed and recreated each time inUse returns to 0
	unloaded bool
}

// Load constructs a Handle by delegating to backend.Load. Failure here is
// the caller's (Model Manager's) cue to transition the owning Version
// Record to FAILED with LOAD_FAILED.
func Load(ctx context.Context, backend Backend, modelRoot string, version int64) (*Handle, error) {
	inputs, outputs, keys, err := backend.Load(ctx, modelRoot, version)
	if err != nil {
		return nil, errors.LoadFailed("engine load failed").WithCause(err)
	}
	return &Handle{
		backend: backend,
		inputs:  inputs,
		outputs: outputs,
		keys:    keys,
		drainCh: make(chan struct{}),
	}, nil
}

// Metadata returns the handle's immutable descriptors. O(1), never fails.
func (h *Handle) Metadata() (inputs, outputs IOSchema, keys ModelKeys) {
	return h.inputs, h.outputs, h.keys
}

// Acquire increments the in-use counter. The caller (Model Manager) must
// only call Acquire while holding proof the owning Version Record is
// AVAILABLE — Handle itself does not know about Version Records. Acquire
// fails once the handle has begun unloading.
func (h *Handle) Acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return false
	}
	h.inUse++
	return true
}

// Release decrements the in-use counter and, when it reaches zero, wakes any
// goroutine blocked in Drain.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inUse > 0 {
		h.inUse--
	}
	if h.inUse == 0 {
		close(h.drainCh)
		h.drainCh = make(chan struct{})
	}
}

// InUse reports the current in-use count, for status/metrics purposes only.
func (h *Handle) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// Drain blocks until the in-use counter reaches zero, then marks the handle
// unloaded so subsequent Acquire calls fail, and finally closes the backend.
// New acquisitions are refused at the Model Manager (state leaves AVAILABLE
// before Drain is ever called), so the counter is monotonically
// non-increasing here — Drain is guaranteed to make progress barring an
// infinite infer.
func (h *Handle) Drain(ctx context.Context) error {
	for {
		h.mu.Lock()
		if h.inUse == 0 {
			h.unloaded = true
			h.mu.Unlock()
			return h.backend.Close()
		}
		wait := h.drainCh
		h.mu.Unlock()

		select {
		case <-wait:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Infer validates and forwards to the backend. It is safe to call from
// multiple concurrent goroutines; no lock is held across the call, matching
// §5's "no lock is held across infer".
func (h *Handle) Infer(ctx context.Context, named map[string]Tensor, batchSize int) (map[string]Tensor, error) {
	if len(named) == 0 {
		return nil, errors.InvalidParam("infer called with no input tensors")
	}
	for name, t := range named {
		if len(t.Shape) == 0 {
			return nil, errors.InvalidParam("malformed tensor shape").WithDetail(name)
		}
	}

	select {
	case <-ctx.Done():
		return nil, errors.DeadlineExceeded("deadline exceeded before infer started")
	default:
	}

	out, err := h.backend.Infer(ctx, named, batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.DeadlineExceeded("deadline exceeded during infer").WithCause(err)
		}
		return nil, errors.Internal("inference runtime failure").WithCause(err)
	}
	return out, nil
}
