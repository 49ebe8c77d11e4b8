package task

const (
	charsPerToken          = 4
	minOutputTokens        = 16
	extractTokenMultiplier = 8
	classifyDefaultTokens  = 128
)

// approxTokens estimates token count from character count.
func approxTokens(nChars int) int {
	n := (nChars + charsPerToken - 1) / charsPerToken
	if n < 1 {
		return 1
	}
	return n
}

// outputTokenBudget chooses the max_output_tokens for a unit. A
// caller-provided value wins (floored at the minimum); otherwise the
// budget scales with input size for extraction and is a small constant
// for classification.
func outputTokenBudget(inputTokens int, kind string, provided int) int {
	if provided > 0 {
		if provided < minOutputTokens {
			return minOutputTokens
		}
		return provided
	}
	switch kind {
	case "classify":
		return classifyDefaultTokens
	default:
		budget := inputTokens * extractTokenMultiplier
		if budget < minOutputTokens {
			return minOutputTokens
		}
		return budget
	}
}
