package models

import "fmt"

// Provider error categories. Sub-task failures carry the category so a
// partially failed batch still tells the caller what went wrong per unit.
const (
	CategoryAuth        = "auth"
	CategoryQuota       = "quota"
	CategoryTimeout     = "timeout"
	CategoryMalformed   = "malformed_response"
	CategoryUnavailable = "unavailable"
)

// ProviderError is a typed failure from the external AI provider. It is
// surfaced per unit and never aborts sibling units.
type ProviderError struct {
	Category string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error %d (%s): %s", e.Status, e.Category, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Category, e.Message)
}
