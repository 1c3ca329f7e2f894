// Package enginetest provides an in-memory engine.Backend double for use by
// higher-level package tests (manager, mediator, watcher) that need a
// deterministic, fast stand-in for a real inference runtime.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine"
)

// Backend is a configurable fake engine.Backend. FailVersions causes Load to
// fail for the listed versions, modeling a corrupt artifact. InferHook, when
// set, runs at the start of every Infer (with an empty model root and version
// 0); a non-nil error from it is returned from Infer.
type Backend struct {
	mu           sync.Mutex
	FailVersions map[int64]struct{}
	InferHook    func(ctx context.Context, modelRoot string, version int64) error
	loadCount    atomic.Int64
	closeCount   atomic.Int64
}

// New returns an empty, always-succeeding fake backend.
func New() *Backend {
	return &Backend{FailVersions: map[int64]struct{}{}}
}

// LoadCount reports how many times Load has been called, for assertions
// about reload/retry behavior.
func (b *Backend) LoadCount() int64 { return b.loadCount.Load() }

// CloseCount reports how many times Close has been called.
func (b *Backend) CloseCount() int64 { return b.closeCount.Load() }

func (b *Backend) Load(_ context.Context, modelRoot string, version int64) (engine.IOSchema, engine.IOSchema, engine.ModelKeys, error) {
	b.loadCount.Add(1)
	b.mu.Lock()
	_, fail := b.FailVersions[version]
	b.mu.Unlock()
	if fail {
		return engine.IOSchema{}, engine.IOSchema{}, engine.ModelKeys{}, fmt.Errorf("fake load failure for %s v%d", modelRoot, version)
	}
	inputs := engine.IOSchema{Fields: []engine.SchemaField{{Name: "input", DType: "DT_FLOAT", Shape: []int64{1, 3, 224, 224}}}}
	outputs := engine.IOSchema{Fields: []engine.SchemaField{{Name: "resnet_v1_50/predictions/Reshape_1", DType: "DT_FLOAT", Shape: []int64{1, 1000}}}}
	keys := engine.ModelKeys{
		Inputs:  map[string]string{"input": "input"},
		Outputs: map[string]string{"resnet_v1_50/predictions/Reshape_1": "resnet_v1_50/predictions/Reshape_1"},
	}
	return inputs, outputs, keys, nil
}

func (b *Backend) Infer(ctx context.Context, named map[string]engine.Tensor, batchSize int) (map[string]engine.Tensor, error) {
	if b.InferHook != nil {
		if err := b.InferHook(ctx, "", 0); err != nil {
			return nil, err
		}
	}
	out := make(map[string]engine.Tensor, len(named))
	for name, t := range named {
		out[name] = engine.Tensor{DType: t.DType, Shape: t.Shape, Data: t.Data}
	}
	return out, nil
}

func (b *Backend) Close() error {
	b.closeCount.Add(1)
	return nil
}
