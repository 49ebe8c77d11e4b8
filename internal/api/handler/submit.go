// Package handler contains the HTTP handlers for the resumix API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	mw "github.com/anupsarkar-dev/resumix/internal/api/middleware"
	"github.com/anupsarkar-dev/resumix/internal/api/response"
	"github.com/anupsarkar-dev/resumix/internal/task"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// Submitter is the interface the submission handlers depend on.
type Submitter interface {
	Submit(ctx context.Context, sub task.Submission) (*models.Job, error)
}

// NewExtractSingleHandler returns the handler for POST /extract/single.
// A valid submission is accepted with 202 and a job_id; the client
// polls /jobs/{id} for progress.
func NewExtractSingleHandler(svc Submitter, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := parseSubmission(w, r, maxFileBytes, models.JobKindSingle)
		if !ok {
			return
		}
		sub.Prompts = []task.PromptItem{{
			PromptType: r.FormValue("prompt_type"),
			Prompt:     r.FormValue("prompt"),
		}}
		submit(w, r, svc, sub)
	}
}

// NewExtractBatchHandler returns the handler for POST /extract/batch.
// The prompts form field is a JSON array of {prompt_type, prompt}.
func NewExtractBatchHandler(svc Submitter, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := parseSubmission(w, r, maxFileBytes, models.JobKindBatch)
		if !ok {
			return
		}

		var items []struct {
			PromptType string `json:"prompt_type"`
			Prompt     string `json:"prompt"`
		}
		if raw := r.FormValue("prompts"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"prompts must be a JSON array of {prompt_type, prompt}", nil)
				return
			}
		}
		for _, it := range items {
			sub.Prompts = append(sub.Prompts, task.PromptItem{PromptType: it.PromptType, Prompt: it.Prompt})
		}
		submit(w, r, svc, sub)
	}
}

// NewClassifyHandler returns the handler for POST /classify.
func NewClassifyHandler(svc Submitter, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := parseSubmission(w, r, maxFileBytes, models.JobKindClassify)
		if !ok {
			return
		}
		submit(w, r, svc, sub)
	}
}

// NewActionHandler returns the handler for POST /ai/action. An action
// runs one prompt against the caller's resume JSON; the uploaded
// document is optional extra context.
func NewActionHandler(svc Submitter, maxFileBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := parseSubmission(w, r, maxFileBytes, models.JobKindAction)
		if !ok {
			return
		}
		sub.Action = strings.TrimSpace(r.FormValue("action_type"))
		sub.Tab = strings.TrimSpace(r.FormValue("tab"))
		sub.ResumeJSON = r.FormValue("resume_json")
		sub.Prompt = r.FormValue("prompt")
		submit(w, r, svc, sub)
	}
}

// parseSubmission reads the multipart form fields shared by every
// submission endpoint. It writes the error response itself and returns
// ok=false when the request is malformed.
func parseSubmission(w http.ResponseWriter, r *http.Request, maxFileBytes int64, kind string) (task.Submission, bool) {
	var sub task.Submission

	r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+1<<20)
	if err := r.ParseMultipartForm(maxFileBytes); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Invalid multipart form or file too large", nil)
		return sub, false
	}

	var data []byte
	var filename string
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		filename = header.Filename
		data, err = io.ReadAll(io.LimitReader(file, maxFileBytes+1))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"Failed to read uploaded file", nil)
			return sub, false
		}
		if int64(len(data)) > maxFileBytes {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"File too large. Maximum size is "+strconv.FormatInt(maxFileBytes, 10)+" bytes", nil)
			return sub, false
		}
	case errors.Is(err, http.ErrMissingFile) && kind == models.JobKindAction:
		// Action jobs may omit the file; they work from resume_json.
	default:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"No file provided", nil)
		return sub, false
	}

	ownerKey, _ := mw.GetOwnerKey(r)

	sub = task.Submission{
		Kind:            kind,
		OwnerKey:        ownerKey,
		UserID:          strings.TrimSpace(r.FormValue("user_id")),
		Credential:      strings.TrimSpace(r.FormValue("openai_api_key")),
		Model:           strings.TrimSpace(r.FormValue("model")),
		FileName:        filename,
		FileData:        data,
		TemperatureZero: r.FormValue("temperature_zero") == "true",
	}
	if v := r.FormValue("max_output_tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
				"max_output_tokens must be a non-negative integer", nil)
			return sub, false
		}
		sub.MaxOutputTokens = n
	}
	return sub, true
}

func submit(w http.ResponseWriter, r *http.Request, svc Submitter, sub task.Submission) {
	job, err := svc.Submit(r.Context(), sub)
	if err != nil {
		if errors.Is(err, task.ErrValidation) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to create job", nil)
		return
	}
	response.Accepted(w, map[string]any{"job_id": job.ID})
}
