// Package detector scans the debtor base and starts executions of
// active flows for debtors matching the flow's trigger policy.
//
// Detection is deliberately stateless: every scan re-derives
// eligibility from the debtor records and relies on the engine's
// atomic slot claim to avoid duplicates, so overlapping scans and
// restarts are harmless.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// DefaultNoContactDays is the no-contact window used when the trigger
// config leaves days unset.
const DefaultNoContactDays = 7

// Starter starts one execution. Satisfied by the engine.
type Starter interface {
	Start(ctx context.Context, flowID, debtorID string) (*models.Execution, error)
}

// Detector runs trigger scans.
type Detector struct {
	persistence persistence.Persistence
	starter     Starter
	clock       clockwork.Clock
	logger      *slog.Logger
}

// New creates a detector.
func New(persist persistence.Persistence, starter Starter, clock clockwork.Clock, logger *slog.Logger) *Detector {
	return &Detector{
		persistence: persist,
		starter:     starter,
		clock:       clock,
		logger:      logger.With("module", "detector"),
	}
}

// Run scans every active flow once and returns how many executions it
// started. A debtor already in an active execution of a flow is
// skipped silently; per-debtor failures are logged and do not stop the
// scan.
func (d *Detector) Run(ctx context.Context) (int, error) {
	flows, err := d.persistence.Flows().Active(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active flows: %w", err)
	}

	started := 0

	for _, flow := range flows {
		count, err := d.scanFlow(ctx, flow)
		if err != nil {
			d.logger.Error("Trigger scan failed for flow", "flow_id", flow.ID, "error", err)

			continue
		}

		started += count
	}

	return started, nil
}

func (d *Detector) scanFlow(ctx context.Context, flow *models.Flow) (int, error) {
	cfg, err := flow.TriggerConfig()
	if err != nil {
		return 0, fmt.Errorf("failed to read trigger config: %w", err)
	}

	if cfg == nil {
		return 0, fmt.Errorf("flow %s has no trigger node", flow.ID)
	}

	days := cfg.Days

	var debtors []*models.Debtor

	switch cfg.Policy {
	case models.TriggerPolicyOverdue:
		debtors, err = d.persistence.Debtors().Overdue(ctx, d.cutoff(days))
	case models.TriggerPolicyNoContact:
		if days <= 0 {
			days = DefaultNoContactDays
		}

		debtors, err = d.persistence.Debtors().NoContactSince(ctx, d.cutoff(days))
	default:
		return 0, fmt.Errorf("unknown trigger policy %q", cfg.Policy)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to select debtors: %w", err)
	}

	started := 0

	for _, debtor := range debtors {
		_, err := d.starter.Start(ctx, flow.ID, debtor.ID)

		switch {
		case err == nil:
			started++
		case persistence.IsConflict(err):
			// Already in this journey; the next scan will pick the
			// debtor up again once the slot frees.
		default:
			d.logger.Error("Failed to start execution",
				"flow_id", flow.ID,
				"debtor_id", debtor.ID,
				"error", err)
		}
	}

	d.logger.Info("Trigger scan finished",
		"flow_id", flow.ID,
		"policy", cfg.Policy,
		"eligible", len(debtors),
		"started", started)

	return started, nil
}

func (d *Detector) cutoff(days int) time.Time {
	return d.clock.Now().UTC().AddDate(0, 0, -days)
}
