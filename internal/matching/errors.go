package matching

import (
	"errors"
	"fmt"
)

// Reasoning failures. Both lead to embedding-only selection, never to a failed call.
var (
	ErrReasoningUnavailable = errors.New("reasoning collaborator unavailable")
	ErrReasoningMalformed   = errors.New("reasoning verdict malformed")
	ErrNoCandidates         = errors.New("no candidates to select from")
)

// ParseError describes a verdict that could not be used.
type ParseError struct {
	Message string
	Raw     string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("verdict parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("verdict parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrReasoningMalformed, e.Cause}
	}
	return []error{ErrReasoningMalformed}
}
