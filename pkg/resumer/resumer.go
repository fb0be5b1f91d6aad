// Package resumer wakes up waiting executions whose resume time has
// passed. It is the only live component suspended executions depend
// on; everything else about them is a persisted row.
package resumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// DefaultBatchSize bounds one scheduler pass.
const DefaultBatchSize = 100

// Engine resumes one execution. Satisfied by the engine.
type Engine interface {
	Resume(ctx context.Context, executionID string) (*models.Execution, error)
}

// Resumer runs scheduler passes over due executions.
type Resumer struct {
	persistence persistence.Persistence
	engine      Engine
	clock       clockwork.Clock
	logger      *slog.Logger
	batchSize   int
}

// New creates a resumer. A non-positive batch size selects the
// default.
func New(persist persistence.Persistence, eng Engine, clock clockwork.Clock, logger *slog.Logger, batchSize int) *Resumer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Resumer{
		persistence: persist,
		engine:      eng,
		clock:       clock,
		logger:      logger.With("module", "resumer"),
		batchSize:   batchSize,
	}
}

// Run resumes one batch of due executions, oldest first, and returns
// how many advanced. Lost claim races are skipped silently; other
// per-execution failures are logged and do not stop the batch.
// Executions beyond the batch bound stay due and are picked up by the
// next pass.
func (r *Resumer) Run(ctx context.Context) (int, error) {
	due, err := r.persistence.Executions().Due(ctx, r.clock.Now().UTC(), r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due executions: %w", err)
	}

	resumed := 0

	for _, execution := range due {
		_, err := r.engine.Resume(ctx, execution.ID)

		switch {
		case err == nil:
			resumed++
		case persistence.IsConflict(err):
			// Another scheduler instance claimed it first.
		default:
			r.logger.Error("Failed to resume execution",
				"execution_id", execution.ID,
				"error", err)
		}
	}

	if len(due) > 0 {
		r.logger.Info("Scheduler pass finished", "due", len(due), "resumed", resumed)
	}

	return resumed, nil
}
