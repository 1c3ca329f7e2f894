// Package watcher implements the Repository Watcher (C6): a single
// background task per repository root that periodically rescans and
// dispatches observed version sets to each managed model's Manager.
package watcher

import (
	"context"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/logging"
)

// DefaultInterval is the tick period used when none is configured, per §4.6.
const DefaultInterval = 1 * time.Second

// Tickable is the subset of manager.Manager the watcher drives. Declared
// locally to avoid importing the manager package's full surface and to keep
// the watcher trivially testable with a fake.
type Tickable interface {
	Tick(ctx context.Context)
}

// Watcher owns one ticker per repository and fans each tick out to every
// registered model, one at a time. It never blocks on load/unload completion
// — Manager.Tick only dispatches, it doesn't wait for engines to finish
// loading or unloading.
type Watcher struct {
	interval time.Duration
	models   map[string]Tickable
	logger   logging.Logger
}

// New constructs a Watcher. interval <= 0 falls back to DefaultInterval.
func New(models map[string]Tickable, interval time.Duration, logger logging.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{interval: interval, models: models, logger: logger}
}

// Run blocks, ticking every w.interval, until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tickAll(ctx)
		}
	}
}

func (w *Watcher) tickAll(ctx context.Context) {
	for name, m := range w.models {
		w.logger.Debug("repository tick", logging.String("model", name))
		m.Tick(ctx)
	}
}
