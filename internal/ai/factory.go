// Package ai wires the configured AI backend.
package ai

import (
	"fmt"

	"github.com/anupsarkar-dev/resumix/internal/ai/mock"
	"github.com/anupsarkar-dev/resumix/internal/ai/openai"
	"github.com/anupsarkar-dev/resumix/internal/config"
	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// NewCompleter constructs the appropriate AI backend based on config.
// Called once at server startup.
func NewCompleter(cfg config.AIConfig) (models.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg), nil
	case "mock":
		return mock.NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, mock", cfg.Provider)
	}
}
