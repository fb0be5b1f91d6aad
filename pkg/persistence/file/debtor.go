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
	"github.com/google/uuid"
)

// DebtorRepository handles debtor-related file operations.
type DebtorRepository struct {
	dir string
	mu  *sync.Mutex
}

// NewDebtorRepository creates a new debtor repository.
func NewDebtorRepository(root string, mu *sync.Mutex) *DebtorRepository {
	return &DebtorRepository{dir: filepath.Join(root, "debtors"), mu: mu}
}

// All returns all debtors, newest first.
func (r *DebtorRepository) All(ctx context.Context) ([]*models.Debtor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(*models.Debtor) bool { return true })
}

// ByID returns a debtor by its ID.
func (r *DebtorRepository) ByID(ctx context.Context, id string) (*models.Debtor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byID(id)
}

// Save upserts a debtor.
func (r *DebtorRepository) Save(ctx context.Context, debtor *models.Debtor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	return writeRecord(r.dir, debtor.ID, debtor)
}

// Snapshot returns the current point-in-time view of a debtor.
func (r *DebtorRepository) Snapshot(ctx context.Context, id string) (*models.DebtorSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	debtor, err := r.byID(id)
	if err != nil {
		return nil, err
	}

	return debtor.Snapshot(), nil
}

// Overdue returns debtors whose due date is at or before the cutoff,
// excluding settled statuses.
func (r *DebtorRepository) Overdue(ctx context.Context, cutoff time.Time) ([]*models.Debtor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(d *models.Debtor) bool {
		return !d.Settled() && !d.DueDate.IsZero() && !d.DueDate.After(cutoff)
	})
}

// NoContactSince returns unsettled debtors without any recorded
// contact at or after the cutoff.
func (r *DebtorRepository) NoContactSince(ctx context.Context, cutoff time.Time) ([]*models.Debtor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(d *models.Debtor) bool {
		if d.Settled() {
			return false
		}

		return d.LastContactAt == nil || d.LastContactAt.Before(cutoff)
	})
}

// SetStatus updates the collection status of a debtor.
func (r *DebtorRepository) SetStatus(ctx context.Context, id string, status models.DebtorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	debtor, err := r.byID(id)
	if err != nil {
		return err
	}

	debtor.Status = status
	debtor.UpdatedAt = time.Now().UTC()

	return writeRecord(r.dir, debtor.ID, debtor)
}

// TouchContact records a contact with the debtor at the given time.
func (r *DebtorRepository) TouchContact(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	debtor, err := r.byID(id)
	if err != nil {
		return err
	}

	debtor.LastContactAt = &at
	debtor.UpdatedAt = time.Now().UTC()

	return writeRecord(r.dir, debtor.ID, debtor)
}

func (r *DebtorRepository) byID(id string) (*models.Debtor, error) {
	debtor := &models.Debtor{}

	err := readRecord(r.dir, id, debtor)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.ErrDebtorNotFound
		}

		return nil, err
	}

	return debtor, nil
}

func (r *DebtorRepository) load(keep func(*models.Debtor) bool) ([]*models.Debtor, error) {
	ids, err := listIDs(r.dir)
	if err != nil {
		return nil, err
	}

	debtors := make([]*models.Debtor, 0, len(ids))

	for _, id := range ids {
		debtor, err := r.byID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load debtor %s: %w", id, err)
		}

		if keep(debtor) {
			debtors = append(debtors, debtor)
		}
	}

	sort.Slice(debtors, func(i, j int) bool {
		return debtors[i].CreatedAt.After(debtors[j].CreatedAt)
	})

	return debtors, nil
}
