// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types all backends use.
var (
	// ErrFlowNotFound indicates no flow exists for the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrExecutionNotFound indicates no execution exists for the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDebtorNotFound indicates no debtor exists for the given identifier.
	ErrDebtorNotFound = errors.New("debtor not found")

	// ErrExecutionConflict indicates an atomic precondition no longer
	// holds: either an active execution already occupies the
	// (flow, debtor) slot, or a waiting execution was already claimed.
	// Callers treat it as a benign no-op, not a failure.
	ErrExecutionConflict = errors.New("execution state conflict")
)

// ExecutionError wraps execution storage errors with operation context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution storage error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// FlowError wraps flow storage errors with operation context.
type FlowError struct {
	Op     string
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow storage error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// IsNotFound checks whether an error indicates a missing record of any kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrDebtorNotFound)
}

// IsConflict checks whether an error is the benign atomic-claim conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrExecutionConflict)
}
