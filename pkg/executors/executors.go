// Package executors defines the contract between the engine and the
// action implementations behind each action node kind.
package executors

import (
	"context"
	"log/slog"

	"github.com/cobrex/cobrex/pkg/models"
)

// Input carries everything an executor may need for one action call.
// The engine resolves the snapshot and the channel before dispatching,
// so executors never reach back into flow or debtor storage to decide
// what to do.
type Input struct {
	ExecutionID string
	FlowID      string
	DebtorID    string
	NodeID      string
	Kind        models.NodeKind
	Config      map[string]any
	Snapshot    *models.DebtorSnapshot
	Channel     models.ChannelConfig
}

// IdempotencyKey identifies one action call of one execution. Side
// effects keyed on it can be deduplicated when a step is retried after
// a crash between the side effect and the persisted log entry.
func (i Input) IdempotencyKey() string {
	return i.ExecutionID + ":" + i.NodeID
}

// Node rebuilds the node view of the input for the typed config
// accessors.
func (i Input) Node() *models.Node {
	return &models.Node{ID: i.NodeID, Kind: i.Kind, Config: i.Config}
}

// Result is the outcome of a successful action call. Detail lands in
// the execution log verbatim.
type Result struct {
	Detail string
}

// Executor performs the side effect of one action node kind. An error
// return is fatal for the execution; executors must not retry
// internally beyond what their transport already does.
type Executor interface {
	Kind() models.NodeKind
	Execute(ctx context.Context, input Input, logger *slog.Logger) (*Result, error)
}
