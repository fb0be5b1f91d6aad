// Package flow provides save-time validation and the management
// service for flow definitions.
package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFlowInvalid marks any save-time validation failure.
var ErrFlowInvalid = errors.New("flow definition is invalid")

// ValidationError collects every problem found in one validation pass,
// so a flow author sees all defects at once instead of one per save.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrFlowInvalid, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrFlowInvalid
}

// IsValidationError checks whether an error is a flow validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrFlowInvalid)
}
