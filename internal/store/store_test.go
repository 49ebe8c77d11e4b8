package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/anupsarkar-dev/resumix/internal/store"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("resumix_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func testJob() *models.Job {
	return &models.Job{
		ID:           uuid.New(),
		Kind:         models.JobKindBatch,
		Status:       models.JobStatusPending,
		OwnerKey:     "sk-test1",
		UserID:       "user-1",
		SubTaskCount: 3,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgres_CreateAndGetJob(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := testJob()
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobKindBatch, got.Kind)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 3, got.SubTaskCount)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.CompletedAt)
}

func TestPostgres_GetJobNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgres_UpdateJobResultAndError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := testJob()
	require.NoError(t, s.CreateJob(ctx, job))

	done := time.Now().UTC().Truncate(time.Microsecond)
	_, err := s.UpdateJob(ctx, job.ID, func(j *models.Job) error {
		j.Status = models.JobStatusCompleted
		j.Progress = 100
		j.SubTasksDone = 3
		j.Result = map[string]any{
			"skills": map[string]any{"languages": []any{"go", "python"}},
			models.ExecutionErrorsKey: map[string]any{
				"about": map[string]any{"category": "timeout", "error": "deadline exceeded"},
			},
		}
		j.CompletedAt = &done
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Contains(t, got.Result, "skills")
	assert.Contains(t, got.Result, models.ExecutionErrorsKey)
	require.NotNil(t, got.CompletedAt)
}

func TestPostgres_UpdateJobStoresStructuredError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := testJob()
	require.NoError(t, s.CreateJob(ctx, job))

	_, err := s.UpdateJob(ctx, job.ID, func(j *models.Job) error {
		j.Status = models.JobStatusFailed
		j.Progress = 100
		j.Error = &models.JobError{
			Code:    "all_subtasks_failed",
			Message: "every sub-task failed",
			Details: map[string]any{"skills": map[string]any{"category": "provider"}},
		}
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, "all_subtasks_failed", got.Error.Code)
	assert.Contains(t, got.Error.Details, "skills")
}

func TestPostgres_UpdateJobMutatorErrorRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := testJob()
	require.NoError(t, s.CreateJob(ctx, job))

	_, err := s.UpdateJob(ctx, job.ID, func(j *models.Job) error {
		j.Status = models.JobStatusFailed
		return context.DeadlineExceeded
	})
	require.Error(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestPostgres_UpdateJobNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.UpdateJob(context.Background(), uuid.New(), func(*models.Job) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgres_ConcurrentUpdatesSerialize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := testJob()
	job.SubTaskCount = 20
	require.NoError(t, s.CreateJob(ctx, job))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateJob(ctx, job.ID, func(j *models.Job) error {
				j.SubTasksDone++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.SubTasksDone)
}

func TestPostgres_DeleteExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	old := testJob()
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	recent := testJob()
	require.NoError(t, s.CreateJob(ctx, old))
	require.NoError(t, s.CreateJob(ctx, recent))

	removed, err := s.DeleteExpired(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, old.ID, removed[0])

	_, err = s.GetJob(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetJob(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestPostgres_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	assert.NoError(t, s.Ping(context.Background()))
}
