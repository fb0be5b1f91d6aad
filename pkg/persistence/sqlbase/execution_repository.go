package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations,
// including the atomic slot-insert and claim primitives.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , flow_id
  , debtor_id
  , status
  , current_node_id
  , log
  , next_run_at
  , started_at
  , completed_at
  , error_message
  , created_at
  , updated_at
`

// ByID returns an execution by its ID.
func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	execution, err := r.scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ByFlow returns all executions of a flow, newest first.
func (r *ExecutionRepository) ByFlow(ctx context.Context, flowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE flow_id = $1
		ORDER BY created_at DESC
	`

	return r.queryExecutions(ctx, query, flowID)
}

// ByStatus returns all executions in the given status, newest first.
func (r *ExecutionRepository) ByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE status = $1
		ORDER BY created_at DESC
	`

	return r.queryExecutions(ctx, query, status)
}

// Save upserts an execution.
func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	logJSON, err := json.Marshal(execution.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal execution log: %w", err)
	}

	execution.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			log = EXCLUDED.log,
			next_run_at = EXCLUDED.next_run_at,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.DebtorID,
		execution.Status,
		execution.CurrentNodeID,
		logJSON,
		execution.NextRunAt,
		execution.StartedAt,
		execution.CompletedAt,
		nullableString(execution.ErrorMessage),
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

// CreateIfVacant inserts the execution only while the (flow, debtor)
// pair has no running or waiting execution. The insert and the
// vacancy check are one statement, so concurrent starts cannot both
// succeed; the partial unique index on the table backs this up.
func (r *ExecutionRepository) CreateIfVacant(ctx context.Context, execution *models.Execution) error {
	logJSON, err := json.Marshal(execution.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal execution log: %w", err)
	}

	now := time.Now().UTC()
	execution.CreatedAt = now
	execution.UpdatedAt = now

	query := `
		INSERT INTO executions (` + executionColumns + `)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE NOT EXISTS (
			SELECT 1 FROM executions
			WHERE flow_id = $2 AND debtor_id = $3 AND status IN ('running', 'waiting')
		)
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.FlowID,
		execution.DebtorID,
		execution.Status,
		execution.CurrentNodeID,
		logJSON,
		execution.NextRunAt,
		execution.StartedAt,
		execution.CompletedAt,
		nullableString(execution.ErrorMessage),
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("CreateIfVacant", execution.ID, persistence.ErrExecutionConflict)
	}

	return nil
}

// ClaimDue atomically moves a waiting, due execution to running. The
// conditional update is the concurrency guard against overlapping
// scheduler ticks; losing the race yields ErrExecutionConflict.
func (r *ExecutionRepository) ClaimDue(ctx context.Context, id string, now time.Time) (*models.Execution, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = 'running', next_run_at = NULL, updated_at = $3
		WHERE id = $1 AND status = 'waiting' AND next_run_at <= $2
	`, id, now, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to claim execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return nil, persistence.NewExecutionError("ClaimDue", id, persistence.ErrExecutionConflict)
	}

	return r.ByID(ctx, id)
}

// Due returns waiting executions whose resume time has passed, oldest
// first, bounded by limit.
func (r *ExecutionRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'waiting' AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`

	return r.queryExecutions(ctx, query, now, limit)
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := r.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) scanExecution(scanner interface{ Scan(dest ...any) error }) (*models.Execution, error) {
	var (
		execution    models.Execution
		logJSON      []byte
		errorMessage sql.NullString
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.FlowID,
		&execution.DebtorID,
		&execution.Status,
		&execution.CurrentNodeID,
		&logJSON,
		&execution.NextRunAt,
		&execution.StartedAt,
		&execution.CompletedAt,
		&errorMessage,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.ErrorMessage = errorMessage.String

	if err := json.Unmarshal(logJSON, &execution.Log); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution log: %w", err)
	}

	return &execution, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
