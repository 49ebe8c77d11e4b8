package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5. With a
// shared database any worker process may update a job by id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	result, jobErr, err := marshalJobFields(job)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, status, progress, owner_key, user_id,
		                   sub_task_count, sub_tasks_done, result, error, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.Kind, job.Status, job.Progress, job.OwnerKey, job.UserID,
		job.SubTaskCount, job.SubTasksDone, result, jobErr, job.CreatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, selectJobSQL+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob holds a row lock for the duration of the mutation so that
// concurrent sub-task completions for the same job serialize cleanly.
func (s *PostgresStore) UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*models.Job) error) (*models.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update job: %w", err)
	}
	defer tx.Rollback(ctx)

	job, err := scanJob(tx.QueryRow(ctx, selectJobSQL+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock job: %w", err)
	}

	if err := mutate(job); err != nil {
		return nil, err
	}

	result, jobErr, err := marshalJobFields(job)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = $2, progress = $3, sub_tasks_done = $4,
		        result = $5, error = $6, completed_at = $7
		 WHERE id = $1`,
		job.ID, job.Status, job.Progress, job.SubTasksDone, result, jobErr, job.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM jobs WHERE created_at < $1 RETURNING id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete expired jobs: %w", err)
	}
	defer rows.Close()

	var removed []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired job id: %w", err)
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

const selectJobSQL = `SELECT id, kind, status, progress, owner_key, user_id,
       sub_task_count, sub_tasks_done, result, error, created_at, completed_at
  FROM jobs`

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j         models.Job
		resultRaw []byte
		errRaw    []byte
	)
	err := row.Scan(&j.ID, &j.Kind, &j.Status, &j.Progress, &j.OwnerKey, &j.UserID,
		&j.SubTaskCount, &j.SubTasksDone, &resultRaw, &errRaw, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(resultRaw) > 0 {
		if err := json.Unmarshal(resultRaw, &j.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	if len(errRaw) > 0 {
		if err := json.Unmarshal(errRaw, &j.Error); err != nil {
			return nil, fmt.Errorf("decode job error: %w", err)
		}
	}
	return &j, nil
}

func marshalJobFields(job *models.Job) (result, jobErr []byte, err error) {
	if job.Result != nil {
		result, err = json.Marshal(job.Result)
		if err != nil {
			return nil, nil, fmt.Errorf("encode job result: %w", err)
		}
	}
	if job.Error != nil {
		jobErr, err = json.Marshal(job.Error)
		if err != nil {
			return nil, nil, fmt.Errorf("encode job error: %w", err)
		}
	}
	return result, jobErr, nil
}
