package models

import "time"

// ExecutionStatus represents the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusWaiting ExecutionStatus = "waiting"
	ExecutionStatusDone    ExecutionStatus = "done"
	ExecutionStatusError   ExecutionStatus = "error"
)

// Log entry outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// LogEntry records one evaluated node of an execution.
type LogEntry struct {
	NodeID    string    `json:"node_id"`
	Kind      NodeKind  `json:"kind"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Execution is one traversal of a flow for one debtor. Executions are
// created by the engine, mutated only by the engine, and kept forever
// as audit history.
//
// While status is "waiting", CurrentNodeID names the node to resume at
// (not the wait node that suspended the run) and NextRunAt is the
// earliest time a resume may advance it. For "done" and "error",
// CurrentNodeID is the last node evaluated.
type Execution struct {
	ID            string          `json:"id"`
	FlowID        string          `json:"flow_id"`
	DebtorID      string          `json:"debtor_id"`
	Status        ExecutionStatus `json:"status"`
	CurrentNodeID string          `json:"current_node_id"`
	Log           []LogEntry      `json:"log"`
	NextRunAt     *time.Time      `json:"next_run_at,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Active reports whether the execution still occupies the one active
// slot of its (flow, debtor) pair.
func (e *Execution) Active() bool {
	return e.Status == ExecutionStatusRunning || e.Status == ExecutionStatusWaiting
}

// Terminal reports whether the execution reached a final state.
// Terminal executions are immutable.
func (e *Execution) Terminal() bool {
	return e.Status == ExecutionStatusDone || e.Status == ExecutionStatusError
}

// AppendLog records the evaluation of a node.
func (e *Execution) AppendLog(nodeID string, kind NodeKind, outcome, detail string, at time.Time) {
	e.Log = append(e.Log, LogEntry{
		NodeID:    nodeID,
		Kind:      kind,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: at,
	})
}

// Due reports whether a waiting execution may be resumed at the given
// time.
func (e *Execution) Due(now time.Time) bool {
	return e.Status == ExecutionStatusWaiting && e.NextRunAt != nil && !e.NextRunAt.After(now)
}
