package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobKindSingle   = "single"
	JobKindBatch    = "batch"
	JobKindClassify = "classify"
	JobKindAction   = "action"
)

// ExecutionErrorsKey is the result key under which failed sub-task
// outcomes are collected. Successful units never appear there.
const ExecutionErrorsKey = "_execution_errors"

// Job tracks one async document-analysis submission. The API returns a
// job_id on POST /extract/*, POST /classify and POST /ai/action; the
// client polls GET /jobs/{job_id} until status is completed or failed.
type Job struct {
	ID           uuid.UUID      `db:"id"             json:"id"`
	Kind         string         `db:"kind"           json:"kind"`
	Status       string         `db:"status"         json:"status"`
	Progress     int            `db:"progress"       json:"progress"`
	OwnerKey     string         `db:"owner_key"      json:"owner_key"`
	UserID       string         `db:"user_id"        json:"user_id"`
	SubTaskCount int            `db:"sub_task_count" json:"sub_task_count"`
	SubTasksDone int            `db:"sub_tasks_done" json:"sub_tasks_done"`
	Result       map[string]any `db:"result"         json:"result,omitempty"`
	Error        *JobError      `db:"error"          json:"error,omitempty"`
	CreatedAt    time.Time      `db:"created_at"     json:"created_at"`
	CompletedAt  *time.Time     `db:"completed_at"   json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobError is the structured failure attached to a failed job. Details
// carries the per-unit execution errors when every sub-task failed.
type JobError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// UnitOutcome is the result of one sub-task (one provider call) within
// a job. Exactly one of Payload and Err is set.
type UnitOutcome struct {
	UnitID  string         `json:"unit_id"`
	Payload map[string]any `json:"payload,omitempty"`
	Err     *UnitError     `json:"error,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// Succeeded reports whether the unit produced a payload.
func (o UnitOutcome) Succeeded() bool { return o.Err == nil }

// UnitError is a typed sub-task failure. Category distinguishes
// rate-limit rejections from provider-side failures.
type UnitError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

const (
	UnitErrRateLimited = "rate_limited"
	UnitErrProvider    = "provider"
	UnitErrTimeout     = "timeout"
	UnitErrInternal    = "internal"
)
