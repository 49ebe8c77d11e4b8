package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anupsarkar-dev/resumix/internal/store"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// --- mock JobGetter ---

type mockJobGetter struct {
	jobs map[uuid.UUID]*models.Job
}

func (m *mockJobGetter) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func jobGetterWith(jobs ...*models.Job) *mockJobGetter {
	m := &mockJobGetter{jobs: make(map[uuid.UUID]*models.Job)}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

// --- helpers ---

func jobsRouter(getter JobGetter) http.Handler {
	r := chi.NewRouter()
	r.Get("/jobs/{jobID}", NewJobStatusHandler(getter))
	r.Get("/jobs/{jobID}/result", NewJobResultHandler(getter))
	return r
}

func getJSON(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, env
}

func errorCode(t *testing.T, env map[string]any) string {
	t.Helper()
	errObj, ok := env["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", env)
	}
	return errObj["code"].(string)
}

func processingJob() *models.Job {
	return &models.Job{
		ID:           uuid.New(),
		Kind:         models.JobKindBatch,
		Status:       models.JobStatusProcessing,
		Progress:     40,
		OwnerKey:     "rx_live_",
		UserID:       "user-1",
		SubTaskCount: 5,
		SubTasksDone: 2,
		CreatedAt:    time.Now().UTC(),
	}
}

// --- status endpoint ---

func TestJobStatus_Processing(t *testing.T) {
	job := processingJob()
	rec, env := getJSON(t, jobsRouter(jobGetterWith(job)), "/jobs/"+job.ID.String())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if data["job_id"] != job.ID.String() {
		t.Errorf("job_id = %v, want %s", data["job_id"], job.ID)
	}
	if data["status"] != models.JobStatusProcessing {
		t.Errorf("status = %v, want processing", data["status"])
	}
	if data["progress"] != float64(40) {
		t.Errorf("progress = %v, want 40", data["progress"])
	}
	if _, present := data["completed_at"]; present {
		t.Error("completed_at must be omitted while the job is running")
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	rec, env := getJSON(t, jobsRouter(jobGetterWith()), "/jobs/"+uuid.NewString())

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, env); code != "JOB_NOT_FOUND" {
		t.Errorf("error code = %s, want JOB_NOT_FOUND", code)
	}
}

func TestJobStatus_MalformedIDAnswers404(t *testing.T) {
	rec, env := getJSON(t, jobsRouter(jobGetterWith()), "/jobs/not-a-uuid")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, env); code != "JOB_NOT_FOUND" {
		t.Errorf("error code = %s, want JOB_NOT_FOUND", code)
	}
}

// --- result endpoint ---

func TestJobResult_NotTerminalAnswers409(t *testing.T) {
	job := processingJob()
	rec, env := getJSON(t, jobsRouter(jobGetterWith(job)), "/jobs/"+job.ID.String()+"/result")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, env); code != "JOB_NOT_FINISHED" {
		t.Errorf("error code = %s, want JOB_NOT_FINISHED", code)
	}
}

func TestJobResult_Completed(t *testing.T) {
	now := time.Now().UTC()
	job := processingJob()
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.CompletedAt = &now
	job.Result = map[string]any{
		"skills": map[string]any{"languages": []any{"go"}},
		models.ExecutionErrorsKey: map[string]any{
			"about": map[string]any{"category": "timeout", "error": "deadline exceeded"},
		},
	}

	rec, env := getJSON(t, jobsRouter(jobGetterWith(job)), "/jobs/"+job.ID.String()+"/result")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	result := data["result"].(map[string]any)
	if _, ok := result["skills"]; !ok {
		t.Error("result must include successful unit payloads")
	}
	if _, ok := result[models.ExecutionErrorsKey]; !ok {
		t.Errorf("partially failed batch must expose %s", models.ExecutionErrorsKey)
	}
	if data["completed_at"] == nil {
		t.Error("completed_at must be set on a terminal job")
	}
}

func TestJobResult_Failed(t *testing.T) {
	now := time.Now().UTC()
	job := processingJob()
	job.Status = models.JobStatusFailed
	job.Progress = 100
	job.CompletedAt = &now
	job.Error = &models.JobError{
		Code:    "all_subtasks_failed",
		Message: "all 5 sub-tasks failed",
		Details: map[string]any{"skills": map[string]any{"category": "auth"}},
	}

	rec, env := getJSON(t, jobsRouter(jobGetterWith(job)), "/jobs/"+job.ID.String()+"/result")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := env["data"].(map[string]any)
	if data["status"] != models.JobStatusFailed {
		t.Errorf("status = %v, want failed", data["status"])
	}
	errObj := data["error"].(map[string]any)
	if errObj["code"] != "all_subtasks_failed" {
		t.Errorf("error code = %v, want all_subtasks_failed", errObj["code"])
	}
	if _, present := data["result"]; present {
		t.Error("failed job must not carry a result")
	}
}
