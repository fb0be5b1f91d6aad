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

// FlowRepository handles flow-related file operations.
type FlowRepository struct {
	dir string
	mu  *sync.Mutex
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(root string, mu *sync.Mutex) *FlowRepository {
	return &FlowRepository{dir: filepath.Join(root, "flows"), mu: mu}
}

// All returns all flows that are not soft deleted, newest first.
func (r *FlowRepository) All(ctx context.Context) ([]*models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(*models.Flow) bool { return true })
}

// Active returns all active flows.
func (r *FlowRepository) Active(ctx context.Context) ([]*models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(func(flow *models.Flow) bool { return flow.Active })
}

// ByID returns a flow by its ID.
func (r *FlowRepository) ByID(ctx context.Context, id string) (*models.Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.byID(id)
}

// Save upserts a flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	return writeRecord(r.dir, flow.ID, flow)
}

// Delete soft deletes a flow by setting deleted_at.
func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, err := r.byID(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	flow.DeletedAt = &now
	flow.Active = false
	flow.UpdatedAt = now

	return writeRecord(r.dir, flow.ID, flow)
}

func (r *FlowRepository) byID(id string) (*models.Flow, error) {
	flow := &models.Flow{}

	err := readRecord(r.dir, id, flow)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewFlowError("ByID", id, persistence.ErrFlowNotFound)
		}

		return nil, err
	}

	if flow.DeletedAt != nil {
		return nil, persistence.NewFlowError("ByID", id, persistence.ErrFlowNotFound)
	}

	return flow, nil
}

func (r *FlowRepository) load(keep func(*models.Flow) bool) ([]*models.Flow, error) {
	ids, err := listIDs(r.dir)
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow, err := r.byID(id)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}

			return nil, err
		}

		if keep(flow) {
			flows = append(flows, flow)
		}
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}
