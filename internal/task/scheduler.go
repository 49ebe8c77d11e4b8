package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/anupsarkar-dev/resumix/internal/store"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// Scheduler fans a batch out into concurrent runner invocations with a
// fixed inter-start stagger, and drives the owning job's progress as
// units complete. Completion order is not guaranteed; the stagger only
// paces admission against the rate limiter.
type Scheduler struct {
	store       store.Store
	runner      *Runner
	stagger     time.Duration
	unitTimeout time.Duration
}

// NewScheduler creates a Scheduler. unitTimeout is the watchdog on each
// sub-task so the aggregate always resolves even if a unit wedges.
func NewScheduler(st store.Store, runner *Runner, stagger, unitTimeout time.Duration) *Scheduler {
	return &Scheduler{store: st, runner: runner, stagger: stagger, unitTimeout: unitTimeout}
}

// RunBatch executes all units for jobID and blocks until the job is
// terminal. The job completes if at least one unit succeeded, else it
// fails; either way the final state carries every unit's outcome.
func (s *Scheduler) RunBatch(ctx context.Context, jobID uuid.UUID, credential string, units []Unit) {
	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		go func(i int, unit Unit) {
			defer wg.Done()

			if s.stagger > 0 && i > 0 {
				select {
				case <-time.After(time.Duration(i) * s.stagger):
				case <-ctx.Done():
				}
			}

			unitCtx, cancel := context.WithTimeout(ctx, s.unitTimeout)
			defer cancel()
			outcome := s.runner.Run(unitCtx, credential, unit)
			s.record(ctx, jobID, outcome)
		}(i, unit)
	}
	wg.Wait()

	s.finalize(ctx, jobID)
}

// record folds one unit outcome into the job under the store's per-job
// lock: both of two concurrent completions are always reflected.
func (s *Scheduler) record(ctx context.Context, jobID uuid.UUID, outcome models.UnitOutcome) {
	_, err := s.store.UpdateJob(ctx, jobID, func(j *models.Job) error {
		j.SubTasksDone++
		if j.SubTaskCount > 0 {
			// Progress never regresses and hits 100 only at finalize.
			p := 100 * j.SubTasksDone / j.SubTaskCount
			if p > 99 {
				p = 99
			}
			if p > j.Progress {
				j.Progress = p
			}
		}
		if j.Result == nil {
			j.Result = make(map[string]any)
		}
		if outcome.Succeeded() {
			j.Result[outcome.UnitID] = outcome.Payload
			return nil
		}
		errs, _ := j.Result[models.ExecutionErrorsKey].(map[string]any)
		if errs == nil {
			errs = make(map[string]any)
			j.Result[models.ExecutionErrorsKey] = errs
		}
		errs[outcome.UnitID] = map[string]any{
			"category": outcome.Err.Category,
			"error":    outcome.Err.Message,
		}
		return nil
	})
	if err != nil {
		// The job may already have been swept; nothing left to drive.
		slog.Warn("record unit outcome", "job_id", jobID, "unit", outcome.UnitID, "error", err)
	}
}

// finalize transitions the job to its terminal status once every unit
// has reported.
func (s *Scheduler) finalize(ctx context.Context, jobID uuid.UUID) {
	now := time.Now().UTC()
	_, err := s.store.UpdateJob(ctx, jobID, func(j *models.Job) error {
		successes := len(j.Result)
		errs, hadErrors := j.Result[models.ExecutionErrorsKey].(map[string]any)
		if hadErrors {
			successes--
		}

		j.Progress = 100
		j.CompletedAt = &now
		if successes > 0 {
			j.Status = models.JobStatusCompleted
			j.Error = nil
			return nil
		}
		j.Status = models.JobStatusFailed
		j.Error = &models.JobError{
			Code:    "all_subtasks_failed",
			Message: fmt.Sprintf("all %d sub-tasks failed", j.SubTaskCount),
			Details: errs,
		}
		j.Result = nil
		return nil
	})
	if err != nil {
		slog.Warn("finalize job", "job_id", jobID, "error", err)
	}
}
