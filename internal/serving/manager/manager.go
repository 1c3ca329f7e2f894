// Package manager implements the Model Manager (C5): one instance per model
// name, owning the version map and driving load/unload of Engine Handles
// under policy control.
package manager

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/engine"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/policy"
	"github.com/turtacn/KeyIP-Intelligence/internal/serving/version"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Snapshot is a lock-free-to-read rendering of one Version Record, returned
// by ListStatuses.
type Snapshot struct {
	Version      int64
	State        string
	ErrorCode    string
	ErrorMessage string
}

// TransitionEvent describes one committed state-machine transition, handed
// to an optional EventSink / AuditSink after the manager lock is released.
type TransitionEvent struct {
	ModelName string
	Version   int64
	From      version.State
	To        version.State
	Code      version.ErrorCode
}

// EventSink publishes lifecycle transition events to an external consumer
// (e.g. Kafka). Implementations must not block the manager for long; the
// manager invokes them outside its lock but still on the transitioning
// goroutine.
type EventSink interface {
	Publish(ctx context.Context, evt TransitionEvent)
}

// AuditSink durably records lifecycle transitions (e.g. to Postgres) for
// compliance queries. Like EventSink, it is invoked outside the manager lock.
type AuditSink interface {
	Record(ctx context.Context, evt TransitionEvent)
}

// StatusCache short-circuits ListStatuses between watcher ticks. The default
// implementation (noCache) performs no caching.
type StatusCache interface {
	Get(modelName string) ([]Snapshot, bool)
	Set(modelName string, snapshots []Snapshot)
	Invalidate(modelName string)
}

type noCache struct{}

func (noCache) Get(string) ([]Snapshot, bool) { return nil, false }
func (noCache) Set(string, []Snapshot)        {}
func (noCache) Invalidate(string)             {}

// Manager owns one model's version map, policy, storage root, and backend.
// All map access happens under mu; load and unload tasks run on separate
// goroutines and only briefly re-take the lock to commit their result.
type Manager struct {
	name      string
	modelRoot string
	cfg       policy.Config
	adapter   storageAdapter
	backend   engine.Backend
	logger    logging.Logger
	events    EventSink
	audit     AuditSink
	cache     StatusCache

	mu      sync.RWMutex
	records map[int64]*version.Record
	handles map[int64]*engine.Handle
}

// storageAdapter is the narrow slice of storage.Adapter the manager itself
// calls directly (OpenArtifact is only ever used by the Backend, which the
// manager does not construct).
type storageAdapter interface {
	ListVersions(ctx context.Context, modelRoot string) (map[int64]struct{}, error)
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithEventSink attaches a lifecycle-event publisher.
func WithEventSink(s EventSink) Option { return func(m *Manager) { m.events = s } }

// WithAuditSink attaches a durable audit-trail writer.
func WithAuditSink(s AuditSink) Option { return func(m *Manager) { m.audit = s } }

// WithStatusCache attaches a ListStatuses cache.
func WithStatusCache(c StatusCache) Option { return func(m *Manager) { m.cache = c } }

// New constructs a Manager for one model name.
func New(name, modelRoot string, cfg policy.Config, adapter storageAdapter, backend engine.Backend, logger logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		name:      name,
		modelRoot: modelRoot,
		cfg:       cfg,
		adapter:   adapter,
		backend:   backend,
		logger:    logger,
		cache:     noCache{},
		records:   make(map[int64]*version.Record),
		handles:   make(map[int64]*engine.Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the model name this manager owns.
func (m *Manager) Name() string { return m.name }

// Resolve implements §4.5's resolve: it returns a concrete version and an
// already-Acquire'd engine handle, or NOT_FOUND. requested == nil means
// LATEST.
func (m *Manager) Resolve(_ context.Context, requested *int64) (int64, *engine.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var v int64
	if requested == nil {
		best := int64(-1)
		for candidate, rec := range m.records {
			if rec.State == version.Available && candidate > best {
				best = candidate
			}
		}
		if best == -1 {
			return 0, nil, errors.NotFound("no available version").WithDetail(m.name)
		}
		v = best
	} else {
		v = *requested
		rec, ok := m.records[v]
		if !ok || rec.State != version.Available {
			return 0, nil, errors.NotFound("model or version not found").WithDetail(m.name)
		}
	}

	handle := m.handles[v]
	if handle == nil || !handle.Acquire() {
		return 0, nil, errors.NotFound("version not currently serving").WithDetail(m.name)
	}
	return v, handle, nil
}

// ListStatuses returns a snapshot of every Version Record, ordered by
// version ascending.
func (m *Manager) ListStatuses() []Snapshot {
	if cached, ok := m.cache.Get(m.name); ok {
		return cached
	}

	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.records))
	for v, rec := range m.records {
		out = append(out, Snapshot{
			Version:      v,
			State:        rec.State.String(),
			ErrorCode:    rec.ErrorCode.String(),
			ErrorMessage: rec.ErrorMessage,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	m.cache.Set(m.name, out)
	return out
}

// StatusOf returns the snapshot for exactly one version, or false if no
// record exists for it.
func (m *Manager) StatusOf(v int64) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[v]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Version: v, State: rec.State.String(), ErrorCode: rec.ErrorCode.String(), ErrorMessage: rec.ErrorMessage}, true
}

// Tick drives one watcher iteration: list versions from storage and feed
// them into HandleRepositoryEvent. IO errors are logged and the tick is
// skipped, per §4.6 item 3.
func (m *Manager) Tick(ctx context.Context) {
	observed, err := m.adapter.ListVersions(ctx, m.modelRoot)
	if err != nil {
		m.logger.Error("repository tick failed, skipping", logging.String("model", m.name), logging.Err(err))
		return
	}
	m.HandleRepositoryEvent(ctx, observed)
}

// HandleRepositoryEvent implements §4.5's state-transition core.
func (m *Manager) HandleRepositoryEvent(ctx context.Context, observed map[int64]struct{}) {
	m.cache.Invalidate(m.name)

	m.mu.Lock()

	// Purge records that reached END and have now been absent for a full tick.
	for v, rec := range m.records {
		if rec.State == version.End {
			if _, present := observed[v]; !present {
				delete(m.records, v)
			}
		}
	}

	loaded := make(map[int64]struct{})
	for v, rec := range m.records {
		if rec.State == version.Loading || rec.State == version.Available {
			loaded[v] = struct{}{}
		}
	}

	toLoad, toUnload, _ := policy.Decide(observed, loaded, m.cfg)

	unloadSet := make(map[int64]struct{}, len(toUnload))
	for v := range toUnload {
		unloadSet[v] = struct{}{}
	}
	for v, rec := range m.records {
		if _, present := observed[v]; !present {
			if rec.State == version.Available {
				unloadSet[v] = struct{}{}
			}
		}
	}

	var toNotify []TransitionEvent

	for v := range unloadSet {
		rec := m.records[v]
		if rec == nil || rec.State != version.Available {
			continue
		}
		from := rec.State
		if err := rec.Transition(version.Unloading, version.OK); err != nil {
			m.logger.Error("illegal unload transition", logging.String("model", m.name), logging.Err(err))
			continue
		}
		handle := m.handles[v]
		toNotify = append(toNotify, TransitionEvent{ModelName: m.name, Version: v, From: from, To: version.Unloading, Code: version.OK})
		go m.runUnload(context.Background(), v, handle)
	}

	for v := range toLoad {
		rec, exists := m.records[v]
		if !exists || rec.State == version.End {
			rec = version.NewRecord(v)
			m.records[v] = rec
		}
		if rec.State != version.Discovered && rec.State != version.Failed {
			continue
		}
		from := rec.State
		if err := rec.Transition(version.Loading, version.OK); err != nil {
			m.logger.Error("illegal load transition", logging.String("model", m.name), logging.Err(err))
			continue
		}
		toNotify = append(toNotify, TransitionEvent{ModelName: m.name, Version: v, From: from, To: version.Loading, Code: version.OK})
		go m.runLoad(ctx, v)
	}

	m.mu.Unlock()

	for _, evt := range toNotify {
		m.notify(evt)
	}
}

func (m *Manager) runLoad(ctx context.Context, v int64) {
	handle, loadErr := engine.Load(ctx, m.backend, m.modelRoot, v)

	m.mu.Lock()
	rec := m.records[v]
	if rec == nil {
		// Version was removed from the map before the load committed.
		m.mu.Unlock()
		if handle != nil {
			_ = handle.Drain(context.Background())
		}
		return
	}
	if rec.State != version.Loading {
		// Retired (or re-transitioned) before this load task committed.
		m.mu.Unlock()
		if handle != nil {
			_ = handle.Drain(context.Background())
		}
		return
	}

	var evt TransitionEvent
	if loadErr != nil {
		_ = rec.Transition(version.Failed, version.LoadFailed)
		evt = TransitionEvent{ModelName: m.name, Version: v, From: version.Loading, To: version.Failed, Code: version.LoadFailed}
	} else {
		_ = rec.Transition(version.Available, version.OK)
		m.handles[v] = handle
		evt = TransitionEvent{ModelName: m.name, Version: v, From: version.Loading, To: version.Available, Code: version.OK}
	}
	m.mu.Unlock()

	m.notify(evt)
}

func (m *Manager) runUnload(ctx context.Context, v int64, handle *engine.Handle) {
	if handle != nil {
		_ = handle.Drain(ctx)
	}

	m.mu.Lock()
	rec := m.records[v]
	if rec != nil && rec.State == version.Unloading {
		_ = rec.Transition(version.End, version.OK)
		delete(m.handles, v)
	}
	m.mu.Unlock()

	m.notify(TransitionEvent{ModelName: m.name, Version: v, From: version.Unloading, To: version.End, Code: version.OK})
}

func (m *Manager) notify(evt TransitionEvent) {
	m.logger.Info("version transition",
		logging.String("model", evt.ModelName),
		logging.Int64("version", evt.Version),
		logging.String("from", evt.From.String()),
		logging.String("to", evt.To.String()),
		logging.String("error_code", evt.Code.String()))

	if m.events != nil {
		m.events.Publish(context.Background(), evt)
	}
	if m.audit != nil {
		m.audit.Record(context.Background(), evt)
	}
}
