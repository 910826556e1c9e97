package feedback

import (
	"errors"
	"fmt"
)

// ErrUnknownShape is returned when a payload matches neither feedback variant.
var ErrUnknownShape = errors.New("feedback payload matches no known shape")

// ServiceError is returned when the LLM call itself fails
// (network, non-2xx, exhausted rate-limit retries, timeout).
type ServiceError struct {
	Op    string
	Cause error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("feedback service failed during %s: %v", e.Op, e.Cause)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// ParseError is returned when the LLM answered but its payload cannot be
// decoded into the expected structure.
type ParseError struct {
	RawText string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feedback payload: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
