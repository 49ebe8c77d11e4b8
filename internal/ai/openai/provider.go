// Package openai implements models.Completer against the OpenAI
// responses API. The credential travels with each request rather than
// living in server config: clients bring their own provider key.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/anupsarkar-dev/resumix/internal/config"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// Provider implements models.Completer using OpenAI.
type Provider struct {
	baseURL string
	client  *http.Client
}

func NewProvider(cfg config.AIConfig) *Provider {
	return &Provider{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	payload := map[string]any{
		"model": req.Model,
		"input": req.Prompt,
		"text":  map[string]any{"format": map[string]any{"type": "json_object"}},
	}
	if req.MaxOutputTokens > 0 {
		payload["max_output_tokens"] = req.MaxOutputTokens
	}
	if req.TemperatureZero && supportsTemperature(req.Model) {
		payload["temperature"] = 0.0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", categorizeTransportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &models.ProviderError{Category: models.CategoryUnavailable, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, raw)
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &models.ProviderError{Category: models.CategoryMalformed, Message: "invalid JSON from provider"}
	}
	if decoded.Status != "completed" {
		reason := "unknown"
		if decoded.IncompleteDetails != nil && decoded.IncompleteDetails.Reason != "" {
			reason = decoded.IncompleteDetails.Reason
		}
		return "", &models.ProviderError{Category: models.CategoryMalformed,
			Message: fmt.Sprintf("completion did not finish: %s", reason)}
	}

	text, ok := decoded.text()
	if !ok {
		return "", &models.ProviderError{Category: models.CategoryMalformed, Message: "no text found in response payload"}
	}
	return text, nil
}

type response struct {
	Status            string `json:"status"`
	OutputText        string `json:"output_text"`
	Content           string `json:"content"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Content []contentItem   `json:"content"`
	Text    json.RawMessage `json:"text"`
}

type contentItem struct {
	Type string          `json:"type"`
	Text json.RawMessage `json:"text"`
}

// text digs the model output out of the several shapes the responses
// API can return.
func (r *response) text() (string, bool) {
	if r.OutputText != "" {
		return r.OutputText, true
	}
	if r.Content != "" {
		return r.Content, true
	}
	for _, item := range r.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" || c.Type == "text" {
				if s, ok := rawText(c.Text); ok {
					return s, true
				}
			}
		}
		if s, ok := rawText(item.Text); ok {
			return s, true
		}
	}
	return "", false
}

// rawText accepts either a plain string or a {"value": "..."} wrapper.
func rawText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Value != "" {
		return wrapped.Value, true
	}
	return "", false
}

func statusError(status int, body []byte) *models.ProviderError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	category := models.CategoryUnavailable
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = models.CategoryAuth
	case status == http.StatusTooManyRequests:
		category = models.CategoryQuota
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		category = models.CategoryTimeout
	}
	return &models.ProviderError{Category: category, Status: status, Message: msg}
}

func categorizeTransportErr(err error) *models.ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &models.ProviderError{Category: models.CategoryTimeout, Message: err.Error()}
	}
	return &models.ProviderError{Category: models.CategoryUnavailable, Message: err.Error()}
}

// supportsTemperature reports whether the model accepts an explicit
// temperature parameter.
func supportsTemperature(model string) bool {
	return strings.HasPrefix(model, "gpt-4.1") || strings.HasPrefix(model, "gpt-4o")
}

var _ models.Completer = (*Provider)(nil)
