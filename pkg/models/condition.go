// Package models provides condition evaluation for branch nodes
package models

import "fmt"

// Metric names a numeric debtor attribute a condition can branch on.
type Metric string

const (
	MetricDebtValue Metric = "debt_value"
	MetricScore     Metric = "score"
)

// Operator is a numeric comparison operator.
type Operator string

const (
	OperatorLT Operator = "<"
	OperatorLE Operator = "<="
	OperatorGT Operator = ">"
	OperatorGE Operator = ">="
	OperatorEQ Operator = "=="
)

// Known reports whether m names a supported metric.
func (m Metric) Known() bool {
	return m == MetricDebtValue || m == MetricScore
}

// Known reports whether o names a supported operator.
func (o Operator) Known() bool {
	switch o {
	case OperatorLT, OperatorLE, OperatorGT, OperatorGE, OperatorEQ:
		return true
	default:
		return false
	}
}

// Evaluate compares the configured metric of a fresh debtor snapshot
// against the threshold.
func (c *ConditionConfig) Evaluate(snapshot *DebtorSnapshot) (bool, error) {
	var value float64

	switch c.Metric {
	case MetricDebtValue:
		value = snapshot.DebtValue
	case MetricScore:
		value = snapshot.Score
	default:
		return false, fmt.Errorf("unknown condition metric %q", c.Metric)
	}

	switch c.Operator {
	case OperatorLT:
		return value < c.Threshold, nil
	case OperatorLE:
		return value <= c.Threshold, nil
	case OperatorGT:
		return value > c.Threshold, nil
	case OperatorGE:
		return value >= c.Threshold, nil
	case OperatorEQ:
		return value == c.Threshold, nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", c.Operator)
	}
}
