package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/tracing"
)

// run advances the execution from its current node until it suspends,
// completes or fails. Every state change hits storage before the next
// node is evaluated, so a crash at any point loses at most the step in
// flight.
func (e *Engine) run(ctx context.Context, flow *models.Flow, execution *models.Execution) error {
	for {
		node := flow.NodeByID(execution.CurrentNodeID)
		if node == nil {
			cause := fmt.Errorf("node %q not found in flow %s: %w", execution.CurrentNodeID, flow.ID, ErrFlowBroken)

			return e.fail(ctx, execution, execution.CurrentNodeID, "", cause)
		}

		var (
			next string
			stop bool
			err  error
		)

		switch {
		case node.Kind == models.KindWait:
			stop = true
			err = e.suspend(ctx, flow, execution, node)
		case node.Kind == models.KindCondition:
			next, err = e.branch(ctx, flow, execution, node)
		case node.Kind.IsAction():
			next, err = e.act(ctx, flow, execution, node)
		default:
			cause := fmt.Errorf("node %q has kind %q the engine cannot evaluate: %w", node.ID, node.Kind, ErrFlowBroken)

			return e.fail(ctx, execution, node.ID, node.Kind, cause)
		}

		if err != nil {
			return e.fail(ctx, execution, node.ID, node.Kind, err)
		}

		if stop {
			return nil
		}

		if next == "" {
			return e.complete(ctx, execution)
		}

		execution.CurrentNodeID = next

		if err := e.persistence.Executions().Save(ctx, execution); err != nil {
			return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
		}
	}
}

// suspend parks the execution on the node after the wait. A wait node
// without an outgoing edge would suspend forever, so it completes the
// execution instead.
func (e *Engine) suspend(ctx context.Context, flow *models.Flow, execution *models.Execution, node *models.Node) error {
	cfg, err := node.WaitConfig()
	if err != nil {
		return err
	}

	target, ok, err := flow.SingleOutgoing(node.ID)
	if err != nil {
		return err
	}

	now := e.clock.Now().UTC()

	if !ok {
		execution.AppendLog(node.ID, node.Kind, models.OutcomeOK, "wait node has no continuation", now)

		return e.complete(ctx, execution)
	}

	// Calendar days, not elapsed hours: waiting 3 days on Monday
	// evening means due Thursday evening UTC.
	nextRun := now.AddDate(0, 0, cfg.Days)

	execution.AppendLog(node.ID, node.Kind, models.OutcomeOK,
		fmt.Sprintf("waiting %d day(s) until %s", cfg.Days, nextRun.Format("2006-01-02T15:04:05Z")), now)
	execution.Status = models.ExecutionStatusWaiting
	execution.CurrentNodeID = target
	execution.NextRunAt = &nextRun

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	e.logger.Info("Execution suspended",
		"execution_id", execution.ID,
		"next_run_at", nextRun,
		"resume_node_id", target)

	return nil
}

// branch evaluates a condition against a fresh debtor snapshot and
// returns the target of the matching labeled edge. A branch without an
// edge ends the journey.
func (e *Engine) branch(ctx context.Context, flow *models.Flow, execution *models.Execution, node *models.Node) (string, error) {
	cfg, err := node.ConditionConfig()
	if err != nil {
		return "", err
	}

	snapshot, err := e.persistence.Debtors().Snapshot(ctx, execution.DebtorID)
	if err != nil {
		return "", err
	}

	result, err := cfg.Evaluate(snapshot)
	if err != nil {
		return "", err
	}

	label := models.BranchNo
	if result {
		label = models.BranchYes
	}

	detail := fmt.Sprintf("%s %s %v is %t, taking %q branch", cfg.Metric, cfg.Operator, cfg.Threshold, result, label)
	execution.AppendLog(node.ID, node.Kind, models.OutcomeOK, detail, e.clock.Now().UTC())

	target, ok := flow.BranchTarget(node.ID, label)
	if !ok {
		execution.Log[len(execution.Log)-1].Detail = detail + "; no edge for branch, completing"

		return "", nil
	}

	return target, nil
}

// act dispatches an action node to its executor under the action
// timeout and returns the follow-up node.
func (e *Engine) act(ctx context.Context, flow *models.Flow, execution *models.Execution, node *models.Node) (string, error) {
	executor, err := e.registry.ExecutorFor(node.Kind)
	if err != nil {
		return "", err
	}

	snapshot, err := e.persistence.Debtors().Snapshot(ctx, execution.DebtorID)
	if err != nil {
		return "", err
	}

	input := executors.Input{
		ExecutionID: execution.ID,
		FlowID:      flow.ID,
		DebtorID:    execution.DebtorID,
		NodeID:      node.ID,
		Kind:        node.Kind,
		Config:      node.Config,
		Snapshot:    snapshot,
		Channel:     flow.Channel,
	}

	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	actionCtx, span := e.tracer.Start(actionCtx, "engine.action", trace.WithAttributes(
		attribute.String(tracing.ExecutionIDKey, execution.ID),
		attribute.String(tracing.NodeIDKey, node.ID),
		attribute.String(tracing.NodeKindKey, string(node.Kind)),
	))
	defer span.End()

	result, err := executor.Execute(actionCtx, input, e.logger)
	if err != nil {
		tracing.SetError(span, err)

		return "", err
	}

	execution.AppendLog(node.ID, node.Kind, models.OutcomeOK, result.Detail, e.clock.Now().UTC())

	target, ok, err := flow.SingleOutgoing(node.ID)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", nil
	}

	return target, nil
}

// complete marks the execution done.
func (e *Engine) complete(ctx context.Context, execution *models.Execution) error {
	now := e.clock.Now().UTC()

	execution.Status = models.ExecutionStatusDone
	execution.NextRunAt = nil
	execution.CompletedAt = &now

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	e.logger.Info("Execution completed",
		"execution_id", execution.ID,
		"flow_id", execution.FlowID,
		"debtor_id", execution.DebtorID)

	return nil
}

// fail records a fatal step failure. The execution leaves the active
// slot; there is no automatic retry, a fresh execution has to be
// started once the cause is fixed.
func (e *Engine) fail(ctx context.Context, execution *models.Execution, nodeID string, kind models.NodeKind, cause error) error {
	now := e.clock.Now().UTC()

	execution.AppendLog(nodeID, kind, models.OutcomeError, cause.Error(), now)
	execution.Status = models.ExecutionStatusError
	execution.ErrorMessage = cause.Error()
	execution.NextRunAt = nil
	execution.CompletedAt = &now

	if err := e.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to save failed execution %s: %w", execution.ID, err)
	}

	e.logger.Error("Execution failed",
		"execution_id", execution.ID,
		"node_id", nodeID,
		"error", cause)

	return nil
}
