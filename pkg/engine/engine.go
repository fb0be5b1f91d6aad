// Package engine advances executions through their flow graph. The
// engine owns every execution state transition: it starts executions
// for eligible debtors, walks the graph node by node persisting after
// each step, suspends on wait nodes and resumes due executions.
//
// Nothing stays in memory between steps. A suspended execution is only
// its persisted row; any process holding the engine can pick it up
// later, which is what makes deploys and crashes survivable.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/tracing"
)

// DefaultActionTimeout bounds one action call.
const DefaultActionTimeout = 30 * time.Second

// Config carries the optional collaborators of an Engine. Zero values
// select production defaults.
type Config struct {
	ActionTimeout time.Duration
	Clock         clockwork.Clock
	Logger        *slog.Logger
	Tracer        trace.Tracer
}

// Engine starts, advances and resumes executions.
type Engine struct {
	persistence   persistence.Persistence
	registry      *executors.Registry
	clock         clockwork.Clock
	logger        *slog.Logger
	tracer        trace.Tracer
	actionTimeout time.Duration
}

// New creates an engine.
func New(persist persistence.Persistence, registry *executors.Registry, cfg Config) *Engine {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = tracing.NewNoopTracer()
	}

	return &Engine{
		persistence:   persist,
		registry:      registry,
		clock:         cfg.Clock,
		logger:        cfg.Logger.With("module", "engine"),
		tracer:        cfg.Tracer,
		actionTimeout: cfg.ActionTimeout,
	}
}

// Start creates an execution of the flow for the debtor and advances
// it until it suspends or terminates.
//
// The (flow, debtor) slot is claimed atomically: when a running or
// waiting execution already occupies it, Start returns
// persistence.ErrExecutionConflict and nothing is written. Callers
// racing each other get exactly one execution.
//
// An action failure does not surface as an error here; the execution
// is persisted in the error state and returned. A non-nil error means
// the engine could not do its job at all.
func (e *Engine) Start(ctx context.Context, flowID, debtorID string) (*models.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.start", trace.WithAttributes(
		attribute.String(tracing.FlowIDKey, flowID),
		attribute.String(tracing.DebtorIDKey, debtorID),
	))
	defer span.End()

	flow, err := e.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	if !flow.Active {
		tracing.SetError(span, ErrFlowInactive)

		return nil, fmt.Errorf("flow %s: %w", flowID, ErrFlowInactive)
	}

	if _, err := e.persistence.Debtors().ByID(ctx, debtorID); err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	trigger := flow.TriggerNode()
	if trigger == nil {
		return nil, fmt.Errorf("flow %s has no trigger node: %w", flowID, ErrFlowBroken)
	}

	first, ok, err := flow.SingleOutgoing(trigger.ID)
	if err != nil || !ok {
		return nil, fmt.Errorf("flow %s trigger has no single outgoing edge: %w", flowID, ErrFlowBroken)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution ID: %w", err)
	}

	now := e.clock.Now().UTC()

	execution := &models.Execution{
		ID:            id.String(),
		FlowID:        flowID,
		DebtorID:      debtorID,
		Status:        models.ExecutionStatusRunning,
		CurrentNodeID: first,
		StartedAt:     now,
	}
	execution.AppendLog(trigger.ID, models.KindTrigger, models.OutcomeOK, "execution started", now)

	if err := e.persistence.Executions().CreateIfVacant(ctx, execution); err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(tracing.ExecutionIDKey, execution.ID))
	e.logger.Info("Execution started",
		"execution_id", execution.ID,
		"flow_id", flowID,
		"debtor_id", debtorID)

	if err := e.run(ctx, flow, execution); err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	return execution, nil
}

// Resume claims a waiting, due execution and advances it. The claim is
// atomic; of any number of concurrent Resume calls for the same
// execution, exactly one proceeds and the rest get
// persistence.ErrExecutionConflict. Terminal executions are never
// touched.
func (e *Engine) Resume(ctx context.Context, executionID string) (*models.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "engine.resume", trace.WithAttributes(
		attribute.String(tracing.ExecutionIDKey, executionID),
	))
	defer span.End()

	execution, err := e.persistence.Executions().ClaimDue(ctx, executionID, e.clock.Now().UTC())
	if err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	flow, err := e.persistence.Flows().ByID(ctx, execution.FlowID)
	if err != nil {
		// The claim already flipped the execution to running; without
		// its flow it cannot go anywhere but the error state.
		if failErr := e.fail(ctx, execution, execution.CurrentNodeID, "", err); failErr != nil {
			return nil, failErr
		}

		tracing.SetError(span, err)

		return execution, nil
	}

	e.logger.Info("Execution resumed",
		"execution_id", execution.ID,
		"flow_id", execution.FlowID,
		"node_id", execution.CurrentNodeID)

	if err := e.run(ctx, flow, execution); err != nil {
		tracing.SetError(span, err)

		return nil, err
	}

	return execution, nil
}
