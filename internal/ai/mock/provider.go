package mock

import (
	"context"

	"github.com/anupsarkar-dev/resumix/pkg/models"
)

// MockCompleter satisfies models.Completer for testing.
type MockCompleter struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)
}

func (m *MockCompleter) Name() string { return m.Name_ }

func (m *MockCompleter) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return `{}`, nil
}

// NewMockCompleter returns a MockCompleter with a sensible default response.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return `{"mock": true}`, nil
		},
	}
}

// NewFailingCompleter returns a MockCompleter that always returns the given error.
func NewFailingCompleter(err error) *MockCompleter {
	return &MockCompleter{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

var _ models.Completer = (*MockCompleter)(nil)
