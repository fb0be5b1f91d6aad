package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionEvaluate(t *testing.T) {
	snapshot := &DebtorSnapshot{DebtValue: 150, Score: 420}

	tests := []struct {
		name     string
		config   ConditionConfig
		expected bool
	}{
		{"debt above threshold", ConditionConfig{Metric: MetricDebtValue, Operator: OperatorGT, Threshold: 100}, true},
		{"debt below threshold", ConditionConfig{Metric: MetricDebtValue, Operator: OperatorGT, Threshold: 200}, false},
		{"debt equal threshold", ConditionConfig{Metric: MetricDebtValue, Operator: OperatorEQ, Threshold: 150}, true},
		{"debt at most", ConditionConfig{Metric: MetricDebtValue, Operator: OperatorLE, Threshold: 150}, true},
		{"score below", ConditionConfig{Metric: MetricScore, Operator: OperatorLT, Threshold: 500}, true},
		{"score at least", ConditionConfig{Metric: MetricScore, Operator: OperatorGE, Threshold: 421}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.config.Evaluate(snapshot)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConditionEvaluate_UnknownMetric(t *testing.T) {
	config := ConditionConfig{Metric: "installments", Operator: OperatorGT, Threshold: 1}

	_, err := config.Evaluate(&DebtorSnapshot{})

	assert.ErrorContains(t, err, "unknown condition metric")
}

func TestConditionEvaluate_UnknownOperator(t *testing.T) {
	config := ConditionConfig{Metric: MetricScore, Operator: "!=", Threshold: 1}

	_, err := config.Evaluate(&DebtorSnapshot{})

	assert.ErrorContains(t, err, "unknown condition operator")
}

func TestNodeConfigDecode(t *testing.T) {
	node := &Node{
		ID:     "wait-1",
		Kind:   KindWait,
		Config: map[string]any{"days": 2},
	}

	cfg, err := node.WaitConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Days)
}

func TestNodeConfigDecode_WrongKind(t *testing.T) {
	node := &Node{ID: "msg-1", Kind: KindMessage, Config: map[string]any{"template": "hi"}}

	_, err := node.WaitConfig()

	assert.ErrorContains(t, err, "is action_message, not action_wait")
}

func TestFlowGraphHelpers(t *testing.T) {
	flow := &Flow{
		ID: "flow-1",
		Nodes: []*Node{
			{ID: "trigger-1", Kind: KindTrigger, Config: map[string]any{"policy": "overdue", "days": 3}},
			{ID: "cond-1", Kind: KindCondition},
			{ID: "msg-a", Kind: KindMessage},
			{ID: "msg-b", Kind: KindMessage},
		},
		Edges: []*Edge{
			{ID: "e1", SourceNodeID: "trigger-1", TargetNodeID: "cond-1"},
			{ID: "e2", SourceNodeID: "cond-1", TargetNodeID: "msg-a", BranchLabel: BranchYes},
			{ID: "e3", SourceNodeID: "cond-1", TargetNodeID: "msg-b", BranchLabel: BranchNo},
		},
	}

	require.NotNil(t, flow.TriggerNode())
	assert.Equal(t, "trigger-1", flow.TriggerNode().ID)

	target, ok, err := flow.SingleOutgoing("trigger-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cond-1", target)

	_, ok, err = flow.SingleOutgoing("msg-a")
	require.NoError(t, err)
	assert.False(t, ok)

	yes, ok := flow.BranchTarget("cond-1", BranchYes)
	require.True(t, ok)
	assert.Equal(t, "msg-a", yes)

	_, ok = flow.BranchTarget("msg-a", BranchYes)
	assert.False(t, ok)

	trigger, err := flow.TriggerConfig()
	require.NoError(t, err)
	assert.Equal(t, TriggerPolicyOverdue, trigger.Policy)
	assert.Equal(t, 3, trigger.Days)
}

func TestFlowSingleOutgoing_Ambiguous(t *testing.T) {
	flow := &Flow{
		Nodes: []*Node{{ID: "msg-a", Kind: KindMessage}},
		Edges: []*Edge{
			{ID: "e1", SourceNodeID: "msg-a", TargetNodeID: "x"},
			{ID: "e2", SourceNodeID: "msg-a", TargetNodeID: "y"},
		},
	}

	_, _, err := flow.SingleOutgoing("msg-a")

	assert.ErrorIs(t, err, ErrAmbiguousEdges)
}

func TestExecutionLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resumeAt := now.AddDate(0, 0, 2)

	exec := &Execution{Status: ExecutionStatusWaiting, NextRunAt: &resumeAt}

	assert.True(t, exec.Active())
	assert.False(t, exec.Terminal())
	assert.False(t, exec.Due(now))
	assert.True(t, exec.Due(resumeAt))
	assert.True(t, exec.Due(resumeAt.Add(time.Hour)))

	exec.Status = ExecutionStatusDone
	assert.False(t, exec.Active())
	assert.True(t, exec.Terminal())
}

func TestDebtorSettled(t *testing.T) {
	assert.False(t, (&Debtor{Status: DebtorStatusOpen}).Settled())
	assert.True(t, (&Debtor{Status: DebtorStatusPaid}).Settled())
	assert.True(t, (&Debtor{Status: DebtorStatusBroken}).Settled())
	assert.False(t, (&Debtor{Status: DebtorStatusNegativado}).Settled())
}
