package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

var ErrNotFound = errors.New("job not found")

// Store is the job registry. It is the single source of truth for job
// status and progress. Implementations must be safe for concurrent use
// and must make UpdateJob atomic per job id: two concurrent updates to
// the same job may never lose a write.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	// GetJob returns ErrNotFound for unknown or already-swept ids.
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// UpdateJob applies mutate under a per-job lock (or equivalent) and
	// returns the job as persisted. An error from mutate aborts the
	// update without changing stored state.
	UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*models.Job) error) (*models.Job, error)
	// DeleteExpired removes every job created before cutoff, regardless
	// of status, and returns the removed ids.
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}
