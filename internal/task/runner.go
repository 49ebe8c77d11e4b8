// Package task contains the job orchestration core: the per-unit
// runner, the staggered batch scheduler, and the submission service
// that drives job state in the store.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anupsarkar-dev/resumix/internal/ratelimit"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// Unit is one fully-prepared provider call within a job.
type Unit struct {
	// ID keys the unit's outcome in the aggregate result. For
	// extraction units this is the prompt type.
	ID              string
	Prompt          string
	Model           string
	MaxOutputTokens int
	TemperatureZero bool
}

// Runner executes one unit against the provider, gated by the rate
// limiter. It never lets an error escape: every failure becomes a typed
// UnitOutcome so batch aggregation always completes.
type Runner struct {
	limiter   *ratelimit.Limiter
	completer models.Completer
	mode      ratelimit.Mode
}

// NewRunner creates a Runner.
func NewRunner(limiter *ratelimit.Limiter, completer models.Completer, mode ratelimit.Mode) *Runner {
	return &Runner{limiter: limiter, completer: completer, mode: mode}
}

// Run acquires a permit, invokes the provider, and parses the response
// as JSON. The permit is released on every exit path, including panics.
func (r *Runner) Run(ctx context.Context, credential string, unit Unit) (outcome models.UnitOutcome) {
	start := time.Now()
	outcome.UnitID = unit.ID
	defer func() {
		outcome.Latency = time.Since(start)
		if rec := recover(); rec != nil {
			outcome.Payload = nil
			outcome.Err = &models.UnitError{
				Category: models.UnitErrInternal,
				Message:  fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	permit, err := r.limiter.Acquire(ctx, credential, r.mode)
	if err != nil {
		outcome.Err = admissionError(err)
		return outcome
	}
	defer permit.Release()

	text, err := r.completer.Complete(ctx, models.CompletionRequest{
		Credential:      credential,
		Model:           unit.Model,
		Prompt:          unit.Prompt,
		MaxOutputTokens: unit.MaxOutputTokens,
		TemperatureZero: unit.TemperatureZero,
	})
	if err != nil {
		outcome.Err = providerError(err)
		return outcome
	}

	payload, err := firstJSON(text)
	if err != nil {
		outcome.Err = &models.UnitError{
			Category: models.CategoryMalformed,
			Message:  fmt.Sprintf("parse model output: %v", err),
		}
		return outcome
	}
	outcome.Payload = payload
	return outcome
}

func admissionError(err error) *models.UnitError {
	var rl *ratelimit.RateLimitedError
	if errors.As(err, &rl) {
		return &models.UnitError{Category: models.UnitErrRateLimited, Message: rl.Error()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.UnitError{Category: models.UnitErrTimeout, Message: "sub-task deadline exceeded while waiting for admission"}
	}
	return &models.UnitError{Category: models.UnitErrInternal, Message: err.Error()}
}

func providerError(err error) *models.UnitError {
	var pe *models.ProviderError
	if errors.As(err, &pe) {
		return &models.UnitError{Category: pe.Category, Message: pe.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.UnitError{Category: models.UnitErrTimeout, Message: "provider call timed out"}
	}
	return &models.UnitError{Category: models.UnitErrProvider, Message: err.Error()}
}
