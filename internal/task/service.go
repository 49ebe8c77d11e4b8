package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/anupsarkar-dev/resumix/internal/artifact"
	"github.com/anupsarkar-dev/resumix/internal/document"
	"github.com/anupsarkar-dev/resumix/internal/prompt"
	"github.com/anupsarkar-dev/resumix/internal/store"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// ErrValidation marks a malformed submission, rejected before any job
// is created.
var ErrValidation = errors.New("invalid submission")

// classifyUnitID keys the single unit of a classification job.
const classifyUnitID = "classification"

// actionUnitID keys the single unit of an AI action job.
const actionUnitID = "action"

// resumeJSONPlaceholder in an action prompt is replaced with the
// caller's resume_json field. The document-text placeholder is handled
// by the prompt registry.
const resumeJSONPlaceholder = "{{USER_RESUME_JSON}}"

// allowedActions maps each resume tab to the actions it supports.
// Checked only when the caller supplies no custom prompt, since a
// custom prompt carries its own instructions.
var allowedActions = map[string]map[string]bool{
	"Contact":        {"AI Suggestions": true, "Validate": true},
	"Soft Skills":    {"AI Suggestions": true, "Validate": true, "Enhance": true},
	"Tech Skills":    {"AI Suggestions": true, "Validate": true},
	"About":          {"AI Suggestions": true, "Validate": true, "Enhance": true, "Shorten": true},
	"Experience":     {"AI Suggestions": true, "Validate": true, "Enhance": true},
	"Projects":       {"AI Suggestions": true, "Validate": true, "Enhance": true},
	"Education":      {"AI Suggestions": true, "Validate": true},
	"Certifications": {"AI Suggestions": true, "Validate": true},
	"Availability":   {},
}

// PromptItem is one requested extraction unit: a named template and an
// optional custom prompt override.
type PromptItem struct {
	PromptType string
	Prompt     string
}

// Submission is a validated-enough request to run document analysis.
// Credential is the caller's provider API key. Action, Tab, ResumeJSON
// and Prompt are used by action jobs only; for those the uploaded file
// is optional.
type Submission struct {
	Kind            string
	OwnerKey        string
	UserID          string
	Credential      string
	Model           string
	FileName        string
	FileData        []byte
	Prompts         []PromptItem
	Action          string
	Tab             string
	ResumeJSON      string
	Prompt          string
	MaxOutputTokens int
	TemperatureZero bool
}

// Service accepts submissions, creates the owning job, and dispatches
// processing in a background goroutine. The job record is mutated only
// by that goroutine until it reaches a terminal status.
type Service struct {
	store     store.Store
	scheduler *Scheduler
	prompts   *prompt.Registry
	extractor document.Extractor
	artifacts *artifact.Store
}

// NewService creates a Service.
func NewService(st store.Store, scheduler *Scheduler, registry *prompt.Registry, extractor document.Extractor, artifacts *artifact.Store) *Service {
	return &Service{
		store:     st,
		scheduler: scheduler,
		prompts:   registry,
		extractor: extractor,
		artifacts: artifacts,
	}
}

// Submit validates the submission, creates a pending job, and returns
// it immediately. Processing continues in the background; the caller
// polls the job endpoints for status and result.
func (s *Service) Submit(ctx context.Context, sub Submission) (*models.Job, error) {
	if err := s.validate(sub); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:           uuid.New(),
		Kind:         sub.Kind,
		Status:       models.JobStatusPending,
		OwnerKey:     sub.OwnerKey,
		UserID:       sub.UserID,
		SubTaskCount: unitCount(sub),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	if s.artifacts != nil && len(sub.FileData) > 0 {
		if _, err := s.artifacts.Save(job.ID, sub.FileName, sub.FileData); err != nil {
			slog.Warn("save upload artifact", "job_id", job.ID, "error", err)
		}
	}

	go s.process(job.ID, sub)

	return job, nil
}

func (s *Service) validate(sub Submission) error {
	switch sub.Kind {
	case models.JobKindSingle, models.JobKindBatch, models.JobKindClassify, models.JobKindAction:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, sub.Kind)
	}
	if sub.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if sub.Credential == "" {
		return fmt.Errorf("%w: provider API key is required", ErrValidation)
	}
	if sub.Model == "" {
		return fmt.Errorf("%w: model is required", ErrValidation)
	}
	// Action jobs work from resume_json; the file is optional context.
	if sub.Kind != models.JobKindAction && len(sub.FileData) == 0 {
		return fmt.Errorf("%w: empty file", ErrValidation)
	}
	switch sub.Kind {
	case models.JobKindSingle:
		if len(sub.Prompts) != 1 {
			return fmt.Errorf("%w: single extraction requires exactly one prompt item", ErrValidation)
		}
	case models.JobKindBatch:
		if len(sub.Prompts) == 0 {
			return fmt.Errorf("%w: batch requires at least one prompt item", ErrValidation)
		}
	case models.JobKindAction:
		if sub.ResumeJSON == "" {
			return fmt.Errorf("%w: resume_json is required", ErrValidation)
		}
		if sub.Prompt == "" {
			allowed, ok := allowedActions[sub.Tab]
			if !ok {
				return fmt.Errorf("%w: unknown tab %q", ErrValidation, sub.Tab)
			}
			if !allowed[sub.Action] {
				return fmt.Errorf("%w: action %q is not supported for tab %q", ErrValidation, sub.Action, sub.Tab)
			}
		}
	}
	seen := make(map[string]bool, len(sub.Prompts))
	for _, item := range sub.Prompts {
		if item.PromptType == "" {
			return fmt.Errorf("%w: prompt item missing prompt_type", ErrValidation)
		}
		if strings.HasPrefix(item.PromptType, "_") {
			// Underscore-prefixed result keys are reserved for the
			// service's own aggregates.
			return fmt.Errorf("%w: prompt_type %q is reserved", ErrValidation, item.PromptType)
		}
		if seen[item.PromptType] {
			return fmt.Errorf("%w: duplicate prompt_type %q", ErrValidation, item.PromptType)
		}
		seen[item.PromptType] = true
		if item.Prompt == "" {
			// Named template must exist when no override is given.
			if _, err := s.prompts.Build("", item.PromptType, ""); err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
	}
	return nil
}

func unitCount(sub Submission) int {
	switch sub.Kind {
	case models.JobKindClassify, models.JobKindAction:
		return 1
	}
	return len(sub.Prompts)
}

// process runs in its own goroutine. It recovers from panics and always
// drives the job to completed or failed.
func (s *Service) process(jobID uuid.UUID, sub Submission) {
	ctx := context.Background()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic processing job", "job_id", jobID, "error", rec)
			s.markFailed(ctx, jobID, "internal", fmt.Sprintf("panic: %v", rec))
		}
	}()

	_, err := s.store.UpdateJob(ctx, jobID, func(j *models.Job) error {
		j.Status = models.JobStatusProcessing
		j.Progress = 10
		return nil
	})
	if err != nil {
		slog.Warn("mark job processing", "job_id", jobID, "error", err)
		return
	}

	var text string
	if len(sub.FileData) > 0 {
		text, err = s.extractor.Extract(sub.FileData)
		if err != nil {
			s.markFailed(ctx, jobID, "extract_failed", err.Error())
			return
		}
	}

	units, err := s.buildUnits(sub, text)
	if err != nil {
		s.markFailed(ctx, jobID, "prompt_failed", err.Error())
		return
	}

	s.scheduler.RunBatch(ctx, jobID, sub.Credential, units)
}

func (s *Service) buildUnits(sub Submission, text string) ([]Unit, error) {
	inputTokens := approxTokens(len(text))

	if sub.Kind == models.JobKindAction {
		base := sub.Prompt
		if base == "" {
			base = fmt.Sprintf("Perform action %q on tab %q using the provided resume JSON and optional document text. Return ONLY a valid JSON object.", sub.Action, sub.Tab)
		}
		p, err := s.prompts.Build(text, "", base)
		if err != nil {
			return nil, err
		}
		p = strings.ReplaceAll(p, resumeJSONPlaceholder, sub.ResumeJSON)
		inputTokens = approxTokens(len(text) + len(sub.ResumeJSON))
		return []Unit{{
			ID:              actionUnitID,
			Prompt:          p,
			Model:           sub.Model,
			MaxOutputTokens: outputTokenBudget(inputTokens, "extract", sub.MaxOutputTokens),
			TemperatureZero: sub.TemperatureZero,
		}}, nil
	}

	if sub.Kind == models.JobKindClassify {
		return []Unit{{
			ID:              classifyUnitID,
			Prompt:          classifyPrompt(text),
			Model:           sub.Model,
			MaxOutputTokens: outputTokenBudget(inputTokens, "classify", sub.MaxOutputTokens),
			TemperatureZero: sub.TemperatureZero,
		}}, nil
	}

	budget := outputTokenBudget(inputTokens, "extract", sub.MaxOutputTokens)
	units := make([]Unit, 0, len(sub.Prompts))
	for _, item := range sub.Prompts {
		p, err := s.prompts.Build(text, item.PromptType, item.Prompt)
		if err != nil {
			return nil, err
		}
		units = append(units, Unit{
			ID:              item.PromptType,
			Prompt:          p,
			Model:           sub.Model,
			MaxOutputTokens: budget,
			TemperatureZero: sub.TemperatureZero,
		})
	}
	return units, nil
}

func (s *Service) markFailed(ctx context.Context, jobID uuid.UUID, code, msg string) {
	now := time.Now().UTC()
	_, err := s.store.UpdateJob(ctx, jobID, func(j *models.Job) error {
		j.Status = models.JobStatusFailed
		j.Progress = 100
		j.CompletedAt = &now
		j.Result = nil
		j.Error = &models.JobError{Code: code, Message: msg}
		return nil
	})
	if err != nil {
		slog.Warn("mark job failed", "job_id", jobID, "error", err)
	}
}

func classifyPrompt(text string) string {
	return `You are a strict classifier. Analyze the following text and return ONLY a valid JSON object:

{
  "resume_likelihood": 0.0,
  "toxic_free_likelihood": 0.0
}

Definitions:
- resume_likelihood: probability [0..1] that the document resembles a resume/CV.
- toxic_free_likelihood: probability [0..1] that the document contains NO toxic/hateful content.

Constraints:
- JSON only (no prose, no explanation).

--- START OF TEXT ---
` + text + `
--- END OF TEXT ---`
}
