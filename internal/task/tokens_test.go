package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 1, approxTokens(0))
	assert.Equal(t, 1, approxTokens(3))
	assert.Equal(t, 1, approxTokens(4))
	assert.Equal(t, 2, approxTokens(5))
	assert.Equal(t, 250, approxTokens(1000))
}

func TestOutputTokenBudget_ProvidedWins(t *testing.T) {
	assert.Equal(t, 512, outputTokenBudget(1000, "extract", 512))
	assert.Equal(t, 512, outputTokenBudget(1000, "classify", 512))
}

func TestOutputTokenBudget_ProvidedFlooredAtMinimum(t *testing.T) {
	assert.Equal(t, minOutputTokens, outputTokenBudget(1000, "extract", 2))
}

func TestOutputTokenBudget_ExtractScalesWithInput(t *testing.T) {
	assert.Equal(t, 800, outputTokenBudget(100, "extract", 0))
	assert.Equal(t, minOutputTokens, outputTokenBudget(1, "extract", 0))
}

func TestOutputTokenBudget_ClassifyIsConstant(t *testing.T) {
	assert.Equal(t, classifyDefaultTokens, outputTokenBudget(10000, "classify", 0))
	assert.Equal(t, classifyDefaultTokens, outputTokenBudget(1, "classify", 0))
}
