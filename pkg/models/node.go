package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeKind discriminates the per-kind configuration of a node.
type NodeKind string

const (
	KindTrigger      NodeKind = "trigger"
	KindMessage      NodeKind = "action_message"
	KindWait         NodeKind = "action_wait"
	KindUpdateStatus NodeKind = "action_update_status"
	KindNegotiate    NodeKind = "action_ai_negotiate"
	KindCondition    NodeKind = "condition"
)

// ActionKinds lists the node kinds dispatched to an action executor.
var ActionKinds = []NodeKind{KindMessage, KindUpdateStatus, KindNegotiate}

// IsAction reports whether the kind is executed through the action
// executor contract.
func (k NodeKind) IsAction() bool {
	switch k {
	case KindMessage, KindUpdateStatus, KindNegotiate:
		return true
	default:
		return false
	}
}

// Known returns whether k names a supported node kind.
func (k NodeKind) Known() bool {
	switch k {
	case KindTrigger, KindMessage, KindWait, KindUpdateStatus, KindNegotiate, KindCondition:
		return true
	default:
		return false
	}
}

// Node is one unit of work in a flow. Config is the kind-specific
// configuration bag as stored; the typed accessors below decode it into
// the per-kind variant. Flows are validated at save time so the engine
// never meets a config the accessors cannot decode.
type Node struct {
	ID     string         `json:"id"     validate:"required"`
	Kind   NodeKind       `json:"kind"   validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

// ErrAmbiguousEdges marks a node with more than one unlabeled outgoing
// edge, which is a flow configuration error.
var ErrAmbiguousEdges = errors.New("node has more than one outgoing edge")

// TriggerConfig configures the eligibility rule seeding executions.
type TriggerConfig struct {
	Policy TriggerPolicy `json:"policy"`
	Days   int           `json:"days"`
}

// MessageConfig configures an action_message node. Template may carry
// {{name}}, {{debt_value}} and {{due_date}} placeholders.
type MessageConfig struct {
	Template string `json:"template"`
}

// WaitConfig configures an action_wait node in calendar days.
type WaitConfig struct {
	Days int `json:"days"`
}

// UpdateStatusConfig configures an action_update_status node.
type UpdateStatusConfig struct {
	Status DebtorStatus `json:"status"`
}

// NegotiateConfig configures an action_ai_negotiate node. Objective
// steers the assistant, e.g. "offer a two-installment settlement".
type NegotiateConfig struct {
	Objective string `json:"objective"`
}

// ConditionConfig configures a condition node.
type ConditionConfig struct {
	Metric    Metric   `json:"metric"`
	Operator  Operator `json:"operator"`
	Threshold float64  `json:"threshold"`
}

func (n *Node) TriggerConfig() (*TriggerConfig, error) {
	cfg := &TriggerConfig{}

	return cfg, n.decode(KindTrigger, cfg)
}

func (n *Node) MessageConfig() (*MessageConfig, error) {
	cfg := &MessageConfig{}

	return cfg, n.decode(KindMessage, cfg)
}

func (n *Node) WaitConfig() (*WaitConfig, error) {
	cfg := &WaitConfig{}

	return cfg, n.decode(KindWait, cfg)
}

func (n *Node) UpdateStatusConfig() (*UpdateStatusConfig, error) {
	cfg := &UpdateStatusConfig{}

	return cfg, n.decode(KindUpdateStatus, cfg)
}

func (n *Node) NegotiateConfig() (*NegotiateConfig, error) {
	cfg := &NegotiateConfig{}

	return cfg, n.decode(KindNegotiate, cfg)
}

func (n *Node) ConditionConfig() (*ConditionConfig, error) {
	cfg := &ConditionConfig{}

	return cfg, n.decode(KindCondition, cfg)
}

// decode round-trips the config bag through JSON into the typed
// variant, guarding against accessing a node as the wrong kind.
func (n *Node) decode(want NodeKind, into any) error {
	if n.Kind != want {
		return fmt.Errorf("node %s is %s, not %s", n.ID, n.Kind, want)
	}

	raw, err := json.Marshal(n.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config of node %s: %w", n.ID, err)
	}

	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to decode %s config of node %s: %w", want, n.ID, err)
	}

	return nil
}
