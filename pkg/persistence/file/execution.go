package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations. The
// shared mutex makes the vacancy check plus insert and the claim
// update atomic with respect to other goroutines, mirroring the
// conditional statements of the SQL backends.
type ExecutionRepository struct {
	dir string
	mu  *sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string, mu *sync.Mutex) *ExecutionRepository {
	return &ExecutionRepository{dir: filepath.Join(root, "executions"), mu: mu}
}

// ByID returns an execution by its ID.
func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byID(id)
}

// ByFlow returns all executions of a flow, newest first.
func (r *ExecutionRepository) ByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(e *models.Execution) bool { return e.FlowID == flowID })
}

// ByStatus returns all executions in the given status, newest first.
func (r *ExecutionRepository) ByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(e *models.Execution) bool { return e.Status == status })
}

// Save upserts an execution.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution.UpdatedAt = time.Now().UTC()

	return writeRecord(r.dir, execution.ID, execution)
}

// CreateIfVacant inserts the execution only while no running or
// waiting execution exists for the same (flow, debtor) pair.
func (r *ExecutionRepository) CreateIfVacant(ctx context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(func(e *models.Execution) bool {
		return e.FlowID == execution.FlowID && e.DebtorID == execution.DebtorID && e.Active()
	})
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return persistence.NewExecutionError("CreateIfVacant", execution.ID, persistence.ErrExecutionConflict)
	}

	now := time.Now().UTC()
	execution.CreatedAt = now
	execution.UpdatedAt = now

	return writeRecord(r.dir, execution.ID, execution)
}

// ClaimDue atomically moves a waiting, due execution to running.
func (r *ExecutionRepository) ClaimDue(ctx context.Context, id string, now time.Time) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, err := r.byID(id)
	if err != nil {
		return nil, err
	}

	if !execution.Due(now) {
		return nil, persistence.NewExecutionError("ClaimDue", id, persistence.ErrExecutionConflict)
	}

	execution.Status = models.ExecutionStatusRunning
	execution.NextRunAt = nil
	execution.UpdatedAt = time.Now().UTC()

	if err := writeRecord(r.dir, execution.ID, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

// Due returns waiting executions whose resume time has passed, oldest
// first, bounded by limit.
func (r *ExecutionRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	due, err := r.load(func(e *models.Execution) bool { return e.Due(now) })
	if err != nil {
		return nil, err
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRunAt.Before(*due[j].NextRunAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *ExecutionRepository) byID(id string) (*models.Execution, error) {
	execution := &models.Execution{}

	err := readRecord(r.dir, id, execution)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, err
	}

	return execution, nil
}

func (r *ExecutionRepository) load(keep func(*models.Execution) bool) ([]*models.Execution, error) {
	ids, err := listIDs(r.dir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.byID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		if keep(execution) {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	return executions, nil
}
