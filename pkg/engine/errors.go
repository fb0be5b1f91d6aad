package engine

import "errors"

var (
	// ErrFlowInactive is returned when Start targets a flow not
	// accepting new executions.
	ErrFlowInactive = errors.New("flow is not active")

	// ErrFlowBroken marks a stored flow the engine cannot traverse,
	// e.g. a missing trigger or a dangling node reference. Validated
	// flows never produce it.
	ErrFlowBroken = errors.New("flow definition is broken")
)

// IsFlowInactive checks whether an error means the flow was inactive.
func IsFlowInactive(err error) bool {
	return errors.Is(err, ErrFlowInactive)
}
