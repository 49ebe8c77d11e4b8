package task

import (
	"encoding/json"
	"errors"
	"strings"
)

// firstJSON decodes text as a JSON object, falling back to extracting
// the first balanced {...} span when the model wrapped its answer in
// prose or code fences.
func firstJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, nil
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, errors.New("no JSON object found in model output")
	}

	depth := 0
	inStr := false
	esc := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case ch == '\\':
				esc = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if err := json.Unmarshal([]byte(text[start:i+1]), &payload); err != nil {
					return nil, err
				}
				return payload, nil
			}
		}
	}
	return nil, errors.New("unbalanced braces in model output")
}
