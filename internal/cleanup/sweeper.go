// Package cleanup reclaims expired job state independent of client
// polling.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/anupsarkar-dev/resumix/internal/store"
)

// Hook is invoked for every removed job id so collaborators can reclaim
// side artifacts. Hooks must be idempotent: a sweep may race a hook
// that already ran.
type Hook func(jobID uuid.UUID)

// Sweeper deletes jobs older than the retention window on a fixed
// interval, regardless of status — a crashed or stuck job is still
// reclaimed. It runs as an independent actor over the shared store and
// never blocks request handling.
type Sweeper struct {
	store     store.Store
	retention time.Duration
	interval  time.Duration
	hooks     []Hook
	now       func() time.Time
}

// New creates a Sweeper.
func New(st store.Store, retention, interval time.Duration, hooks ...Hook) *Sweeper {
	return &Sweeper{
		store:     st,
		retention: retention,
		interval:  interval,
		hooks:     hooks,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then on every tick until ctx is
// cancelled. Start it with `go sweeper.Run(ctx)` at process init.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one cleanup cycle and returns how many jobs it removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.retention)
	removed, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		slog.Error("sweep expired jobs", "error", err)
		return 0
	}
	for _, id := range removed {
		for _, hook := range s.hooks {
			hook(id)
		}
	}
	if len(removed) > 0 {
		slog.Info("swept expired jobs", "count", len(removed))
	}
	return len(removed)
}
