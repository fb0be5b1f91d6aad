// Package status implements the executor updating a debtor's
// collection status, e.g. reporting them to a credit bureau.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// Executor writes the configured status to the debtor record.
type Executor struct {
	debtors persistence.DebtorRepository
}

// NewExecutor creates a status executor.
func NewExecutor(debtors persistence.DebtorRepository) *Executor {
	return &Executor{debtors: debtors}
}

func (e *Executor) Kind() models.NodeKind {
	return models.KindUpdateStatus
}

func (e *Executor) Execute(ctx context.Context, input executors.Input, logger *slog.Logger) (*executors.Result, error) {
	cfg, err := input.Node().UpdateStatusConfig()
	if err != nil {
		return nil, err
	}

	if err := e.debtors.SetStatus(ctx, input.DebtorID, cfg.Status); err != nil {
		return nil, fmt.Errorf("failed to update status of debtor %s: %w", input.DebtorID, err)
	}

	logger.Info("Debtor status updated",
		"debtor_id", input.DebtorID,
		"from", input.Snapshot.Status,
		"to", cfg.Status)

	return &executors.Result{
		Detail: fmt.Sprintf("status changed from %s to %s", input.Snapshot.Status, cfg.Status),
	}, nil
}
