package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstJSON_PlainObject(t *testing.T) {
	got, err := firstJSON(`{"name": "Ada", "score": 0.9}`)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])
}

func TestFirstJSON_LeadingAndTrailingProse(t *testing.T) {
	got, err := firstJSON("Sure, here is the result:\n{\"skills\": [\"go\"]}\nLet me know if you need more.")
	require.NoError(t, err)
	assert.Contains(t, got, "skills")
}

func TestFirstJSON_CodeFence(t *testing.T) {
	got, err := firstJSON("```json\n{\"ok\": true}\n```")
	require.NoError(t, err)
	assert.Equal(t, true, got["ok"])
}

func TestFirstJSON_NestedObjects(t *testing.T) {
	got, err := firstJSON(`prefix {"a": {"b": {"c": 1}}} suffix`)
	require.NoError(t, err)
	inner := got["a"].(map[string]any)
	assert.Contains(t, inner, "b")
}

func TestFirstJSON_BracesInsideStrings(t *testing.T) {
	got, err := firstJSON(`{"note": "uses {curly} braces and a \" quote"}`)
	require.NoError(t, err)
	assert.Equal(t, `uses {curly} braces and a " quote`, got["note"])
}

func TestFirstJSON_NoObject(t *testing.T) {
	_, err := firstJSON("the model refused to answer")
	assert.Error(t, err)
}

func TestFirstJSON_Unbalanced(t *testing.T) {
	_, err := firstJSON(`{"open": `)
	assert.Error(t, err)
}

func TestFirstJSON_PicksFirstObject(t *testing.T) {
	got, err := firstJSON(`{"first": 1} {"second": 2}`)
	require.NoError(t, err)
	assert.Contains(t, got, "first")
	assert.NotContains(t, got, "second")
}
