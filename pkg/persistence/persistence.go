// Package persistence provides the data storage abstraction for flows,
// executions and debtors.
package persistence

import (
	"context"
	"time"

	"github.com/cobrex/cobrex/pkg/models"
)

// Persistence aggregates the repositories of one storage backend.
type Persistence interface {
	Flows() FlowRepository
	Executions() ExecutionRepository
	Debtors() DebtorRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores flow definitions.
type FlowRepository interface {
	All(ctx context.Context) ([]*models.Flow, error)
	Active(ctx context.Context) ([]*models.Flow, error)
	ByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores executions and provides the two atomic
// claim primitives the engine relies on.
//
// CreateIfVacant inserts the execution only while no running or waiting
// execution exists for the same (flow, debtor) pair, as one atomic
// operation, and returns ErrExecutionConflict otherwise. ClaimDue moves
// a waiting, due execution to running as one atomic operation and
// returns ErrExecutionConflict when the execution is no longer in that
// state, so overlapping scheduler ticks cannot both advance it.
type ExecutionRepository interface {
	ByID(ctx context.Context, id string) (*models.Execution, error)
	ByFlow(ctx context.Context, flowID string) ([]*models.Execution, error)
	ByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error)
	Save(ctx context.Context, execution *models.Execution) error

	CreateIfVacant(ctx context.Context, execution *models.Execution) error
	ClaimDue(ctx context.Context, id string, now time.Time) (*models.Execution, error)
	Due(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error)
}

// DebtorRepository stores debtors and serves the detector queries and
// the point-in-time snapshot reads of the engine.
type DebtorRepository interface {
	All(ctx context.Context) ([]*models.Debtor, error)
	ByID(ctx context.Context, id string) (*models.Debtor, error)
	Save(ctx context.Context, debtor *models.Debtor) error

	// Snapshot returns the current point-in-time view of a debtor.
	Snapshot(ctx context.Context, id string) (*models.DebtorSnapshot, error)

	// Overdue returns debtors whose due date is at or before the cutoff,
	// excluding settled statuses.
	Overdue(ctx context.Context, cutoff time.Time) ([]*models.Debtor, error)

	// NoContactSince returns unsettled debtors whose last recorded
	// contact is before the cutoff or absent.
	NoContactSince(ctx context.Context, cutoff time.Time) ([]*models.Debtor, error)

	SetStatus(ctx context.Context, id string, status models.DebtorStatus) error
	TouchContact(ctx context.Context, id string, at time.Time) error
}
