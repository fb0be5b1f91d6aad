package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/google/uuid"
)

// DebtorRepository handles debtor-related database operations.
type DebtorRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDebtorRepository creates a new debtor repository.
func NewDebtorRepository(db *sql.DB, logger *slog.Logger) *DebtorRepository {
	return &DebtorRepository{db: db, logger: logger}
}

const debtorColumns = `
	id
  , tenant_id
  , name
  , phone
  , debt_value
  , score
  , due_date
  , status
  , last_contact_at
  , created_at
  , updated_at
`

// All returns all debtors.
func (r *DebtorRepository) All(ctx context.Context) ([]*models.Debtor, error) {
	query := `SELECT ` + debtorColumns + ` FROM debtors ORDER BY created_at DESC`

	return r.queryDebtors(ctx, query)
}

// ByID returns a debtor by its ID.
func (r *DebtorRepository) ByID(ctx context.Context, id string) (*models.Debtor, error) {
	query := `SELECT ` + debtorColumns + ` FROM debtors WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	debtor, err := r.scanDebtor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDebtorNotFound
		}

		return nil, fmt.Errorf("failed to scan debtor: %w", err)
	}

	return debtor, nil
}

// Save upserts a debtor.
func (r *DebtorRepository) Save(ctx context.Context, debtor *models.Debtor) error {
	now := time.Now().UTC()

	if debtor.CreatedAt.IsZero() {
		debtor.CreatedAt = now
	}

	debtor.UpdatedAt = now

	if debtor.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate debtor ID: %w", err)
		}

		debtor.ID = id.String()
	}

	if debtor.Status == "" {
		debtor.Status = models.DebtorStatusOpen
	}

	query := `
		INSERT INTO debtors (` + debtorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			debt_value = EXCLUDED.debt_value,
			score = EXCLUDED.score,
			due_date = EXCLUDED.due_date,
			status = EXCLUDED.status,
			last_contact_at = EXCLUDED.last_contact_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		debtor.ID,
		debtor.TenantID,
		debtor.Name,
		debtor.Phone,
		debtor.DebtValue,
		debtor.Score,
		debtor.DueDate,
		debtor.Status,
		debtor.LastContactAt,
		debtor.CreatedAt,
		debtor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save debtor: %w", err)
	}

	return nil
}

// Snapshot returns the point-in-time view the engine hands to
// condition evaluation and action calls.
func (r *DebtorRepository) Snapshot(ctx context.Context, id string) (*models.DebtorSnapshot, error) {
	debtor, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return debtor.Snapshot(), nil
}

// Overdue returns debtors whose due date is at or before the cutoff,
// excluding settled statuses.
func (r *DebtorRepository) Overdue(ctx context.Context, cutoff time.Time) ([]*models.Debtor, error) {
	query := `SELECT ` + debtorColumns + `
		FROM debtors
		WHERE due_date <= $1 AND status NOT IN ('paid', 'broken')
		ORDER BY due_date ASC
	`

	return r.queryDebtors(ctx, query, cutoff)
}

// NoContactSince returns unsettled debtors without any recorded
// contact at or after the cutoff.
func (r *DebtorRepository) NoContactSince(ctx context.Context, cutoff time.Time) ([]*models.Debtor, error) {
	query := `SELECT ` + debtorColumns + `
		FROM debtors
		WHERE status NOT IN ('paid', 'broken')
		  AND (last_contact_at IS NULL OR last_contact_at < $1)
		ORDER BY last_contact_at ASC NULLS FIRST
	`

	return r.queryDebtors(ctx, query, cutoff)
}

// SetStatus updates the collection status of a debtor.
func (r *DebtorRepository) SetStatus(ctx context.Context, id string, status models.DebtorStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE debtors SET status = $2, updated_at = $3 WHERE id = $1",
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update debtor status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrDebtorNotFound
	}

	return nil
}

// TouchContact records a contact with the debtor at the given time.
func (r *DebtorRepository) TouchContact(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE debtors SET last_contact_at = $2, updated_at = $3 WHERE id = $1",
		id, at, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record debtor contact: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.ErrDebtorNotFound
	}

	return nil
}

func (r *DebtorRepository) queryDebtors(ctx context.Context, query string, args ...any) ([]*models.Debtor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debtors: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	debtors := make([]*models.Debtor, 0)

	for rows.Next() {
		debtor, err := r.scanDebtor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debtor: %w", err)
		}

		debtors = append(debtors, debtor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debtors: %w", err)
	}

	return debtors, nil
}

func (r *DebtorRepository) scanDebtor(scanner interface{ Scan(dest ...any) error }) (*models.Debtor, error) {
	var (
		debtor  models.Debtor
		phone   sql.NullString
		dueDate sql.NullTime
	)

	err := scanner.Scan(
		&debtor.ID,
		&debtor.TenantID,
		&debtor.Name,
		&phone,
		&debtor.DebtValue,
		&debtor.Score,
		&dueDate,
		&debtor.Status,
		&debtor.LastContactAt,
		&debtor.CreatedAt,
		&debtor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	debtor.Phone = phone.String
	debtor.DueDate = dueDate.Time

	return &debtor, nil
}
