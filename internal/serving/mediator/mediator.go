// Package mediator implements the Request Mediator (C7): the single place
// where incoming predict/metadata/status requests resolve a (model,
// version) pair, acquire an engine under the concurrency guard, invoke it,
// and translate errors — regardless of which wire protocol (HTTP/JSON or
// binary RPC) the request arrived on.
package mediator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/manager"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// ModelManager is the slice of manager.Manager the mediator drives. Declared
// locally so tests can substitute a fake for *manager.Manager; the mediator
// still imports the manager package for its Snapshot type.
type ModelManager interface {
	Resolve(ctx context.Context, requested *int64) (int64, *engine.Handle, error)
	ListStatuses() []manager.Snapshot
	StatusOf(version int64) (manager.Snapshot, bool)
}

// Registry resolves a model name to its Manager. Unknown names yield
// (nil, false); the mediator translates that to NOT_FOUND.
type Registry interface {
	Get(modelName string) (ModelManager, bool)
}

// MapRegistry is the simplest Registry: a fixed map of model name to Manager,
// built once at startup from configuration.
type MapRegistry map[string]ModelManager

// Get implements Registry.
func (r MapRegistry) Get(modelName string) (ModelManager, bool) {
	m, ok := r[modelName]
	return m, ok
}

// Metadata is the wire-agnostic result of GetModelMetadata.
type Metadata struct {
	ModelName string
	Version   int64
	Inputs    engine.IOSchema
	Outputs   engine.IOSchema
	Keys      engine.ModelKeys
}

// StatusList is the wire-agnostic result of GetModelStatus.
type StatusList struct {
	ModelName string
	Versions  []manager.Snapshot
}

// PredictInput carries already-decoded named tensors and the batch size. The
// wire-format discriminator (row vs column input) does not pass through the
// Mediator: the HTTP layer keeps it and shapes the response itself.
type PredictInput struct {
	Tensors   map[string]engine.Tensor
	BatchSize int
}

// PredictOutput mirrors PredictInput with the engine's results plus the
// resolved concrete version (never the LATEST sentinel, per the original
// source's model_spec.version.value behavior carried in SPEC_FULL.md §5).
type PredictOutput struct {
	ModelName string
	Version   int64
	Tensors   map[string]engine.Tensor
}

// Mediator is the C7 Request Mediator: stateless itself, it only holds a
// Registry of Managers and a logger.
type Mediator struct {
	registry Registry
	logger   logging.Logger
}

// New constructs a Mediator over the given model registry.
func New(registry Registry, logger logging.Logger) *Mediator {
	return &Mediator{registry: registry, logger: logger}
}

func (m *Mediator) resolveManager(modelName string) (ModelManager, error) {
	mgr, ok := m.registry.Get(modelName)
	if !ok {
		return nil, errors.NotFound("model not found").WithDetail(modelName)
	}
	return mgr, nil
}

// GetModelStatus implements §4.7's GetModelStatus. version == nil returns
// every Version Record; otherwise only the matching one. No engine is
// acquired — this is a pure map read.
func (m *Mediator) GetModelStatus(ctx context.Context, modelName string, version *int64) (StatusList, error) {
	traceID := uuid.New().String()
	mgr, err := m.resolveManager(modelName)
	if err != nil {
		m.logger.Info("get_model_status: model not found", logging.String("trace_id", traceID), logging.String("model", modelName))
		return StatusList{}, err
	}

	if version == nil {
		return StatusList{ModelName: modelName, Versions: mgr.ListStatuses()}, nil
	}

	snap, ok := mgr.StatusOf(*version)
	if !ok {
		return StatusList{}, errors.NotFound("version not found").WithDetail(modelName)
	}
	return StatusList{ModelName: modelName, Versions: []manager.Snapshot{snap}}, nil
}

// GetModelMetadata implements §4.7's GetModelMetadata: resolve, acquire,
// read, release, return. version == nil means LATEST.
func (m *Mediator) GetModelMetadata(ctx context.Context, modelName string, version *int64) (Metadata, error) {
	traceID := uuid.New().String()
	mgr, err := m.resolveManager(modelName)
	if err != nil {
		return Metadata{}, err
	}

	resolved, handle, err := mgr.Resolve(ctx, version)
	if err != nil {
		m.logger.Info("get_model_metadata: resolve failed",
			logging.String("trace_id", traceID), logging.String("model", modelName), logging.Err(err))
		return Metadata{}, err
	}
	defer handle.Release()

	inputs, outputs, keys := handle.Metadata()
	return Metadata{
		ModelName: modelName,
		Version:   resolved,
		Inputs:    inputs,
		Outputs:   outputs,
		Keys:      keys,
	}, nil
}

// Predict implements §4.7's Predict: resolve, acquire, infer, release,
// return — with release guaranteed on every exit path including a deadline
// expiring mid-infer (§5 "Cancellation & timeouts"). This defer is the
// single most important correctness property of the serving side (§4.7).
func (m *Mediator) Predict(ctx context.Context, modelName string, version *int64, in PredictInput) (PredictOutput, error) {
	traceID := uuid.New().String()
	start := time.Now()

	mgr, err := m.resolveManager(modelName)
	if err != nil {
		return PredictOutput{}, err
	}

	resolveStart := time.Now()
	resolved, handle, err := mgr.Resolve(ctx, version)
	if err != nil {
		m.logger.Info("predict: resolve failed",
			logging.String("trace_id", traceID), logging.String("model", modelName), logging.Err(err))
		return PredictOutput{}, err
	}
	m.logger.Debug("predict: resolved version",
		logging.String("trace_id", traceID), logging.Int64("version", resolved),
		logging.Duration("duration_ms", time.Since(resolveStart)))

	// Every exit path below runs Release exactly once, including the
	// deadline-exceeded branch: infer still returns control to us, we
	// still release, we just report a different error kind (§5).
	defer handle.Release()

	inferStart := time.Now()
	out, err := handle.Infer(ctx, in.Tensors, in.BatchSize)
	m.logger.Debug("predict: infer completed",
		logging.String("trace_id", traceID), logging.Duration("duration_ms", time.Since(inferStart)), logging.Err(err))
	if err != nil {
		return PredictOutput{}, err
	}

	m.logger.Debug("predict: total duration",
		logging.String("trace_id", traceID), logging.Duration("duration_ms", time.Since(start)))

	return PredictOutput{ModelName: modelName, Version: resolved, Tensors: out}, nil
}
