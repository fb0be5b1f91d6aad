// Package models defines the core domain models for collection journey automation
package models

import "time"

// TriggerPolicy selects which debtors a flow is started for.
type TriggerPolicy string

const (
	// TriggerPolicyOverdue starts the flow for debtors whose due date is
	// at least N days in the past.
	TriggerPolicyOverdue TriggerPolicy = "overdue"
	// TriggerPolicyNoContact starts the flow for debtors without any
	// recorded contact in the last N days.
	TriggerPolicyNoContact TriggerPolicy = "no_contact"
)

// ChannelConfig carries the message channel settings of a flow. It is
// resolved once when an execution starts and handed to every action
// call, so actions never read channel settings from ambient state.
type ChannelConfig struct {
	Provider string `json:"provider"` // "whatsapp", "sms"
	From     string `json:"from"`     // sender identity, e.g. "+5511999990000"
}

// Flow is a graph of nodes and edges describing one collection journey.
// The engine only ever reads a flow; it is edited and validated through
// the flow service and is immutable from an execution's point of view.
type Flow struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	Active      bool          `json:"active"`
	Channel     ChannelConfig `json:"channel"`
	Nodes       []*Node       `json:"nodes"`
	Edges       []*Edge       `json:"edges"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

// Edge is a directed connection between two nodes. BranchLabel is set
// only on edges leaving a condition node and selects the branch taken
// for a true ("yes") or false ("no") evaluation.
type Edge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	BranchLabel  string `json:"branch_label,omitempty"`
}

// Branch labels for edges leaving a condition node.
const (
	BranchYes = "yes"
	BranchNo  = "no"
)

// NodeByID returns the node with the given ID, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNode returns the flow's trigger node, or nil if the flow has
// none. Validated flows have exactly one.
func (f *Flow) TriggerNode() *Node {
	for _, node := range f.Nodes {
		if node.Kind == KindTrigger {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns all edges leaving the given node.
func (f *Flow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, edge := range f.Edges {
		if edge.SourceNodeID == nodeID {
			out = append(out, edge)
		}
	}

	return out
}

// IncomingEdges returns all edges entering the given node.
func (f *Flow) IncomingEdges(nodeID string) []*Edge {
	var in []*Edge

	for _, edge := range f.Edges {
		if edge.TargetNodeID == nodeID {
			in = append(in, edge)
		}
	}

	return in
}

// SingleOutgoing returns the target node ID of the node's only outgoing
// edge. It returns ok=false when the node has no outgoing edge (a dead
// end) and ErrAmbiguousEdges when more than one exists, which validated
// flows never have outside condition nodes.
func (f *Flow) SingleOutgoing(nodeID string) (string, bool, error) {
	edges := f.OutgoingEdges(nodeID)

	switch len(edges) {
	case 0:
		return "", false, nil
	case 1:
		return edges[0].TargetNodeID, true, nil
	default:
		return "", false, ErrAmbiguousEdges
	}
}

// BranchTarget returns the target node ID of the outgoing edge carrying
// the given branch label. ok=false means no edge matches, which the
// engine treats as a dead end.
func (f *Flow) BranchTarget(nodeID, label string) (string, bool) {
	for _, edge := range f.OutgoingEdges(nodeID) {
		if edge.BranchLabel == label {
			return edge.TargetNodeID, true
		}
	}

	return "", false
}

// TriggerConfig returns the decoded trigger node configuration of the
// flow, or nil when the flow has no trigger node.
func (f *Flow) TriggerConfig() (*TriggerConfig, error) {
	trigger := f.TriggerNode()
	if trigger == nil {
		return nil, nil
	}

	return trigger.TriggerConfig()
}
