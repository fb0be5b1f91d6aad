package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// ErrFlowNotFound is returned when a flow is not found.
var ErrFlowNotFound = persistence.ErrFlowNotFound

// Service manages flow definitions. Every write path runs the
// validator first, which is what lets the engine treat stored flows as
// well-formed.
type Service struct {
	persistence persistence.Persistence
	validator   *Validator
}

// NewService creates a new flow service.
func NewService(persistence persistence.Persistence) *Service {
	return &Service{
		persistence: persistence,
		validator:   NewValidator(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Service) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

// List returns all flows.
func (s *Service) List(ctx context.Context) ([]*models.Flow, error) {
	flows, err := s.persistence.Flows().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

// FetchByID retrieves a flow by its ID.
func (s *Service) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	return s.persistence.Flows().ByID(ctx, id)
}

// Create validates and stores a new flow. New flows start inactive so
// the trigger detectors never pick up a half-configured journey.
func (s *Service) Create(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	if err := s.validator.Validate(flow); err != nil {
		return nil, err
	}

	flow.ID = ""
	flow.Active = false
	flow.CreatedAt = time.Time{}

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	return flow, nil
}

// Update validates and replaces an existing flow definition. Running
// executions keep advancing through the definition they started with
// only until their next load; edits apply from the next step onward.
func (s *Service) Update(ctx context.Context, id string, flow *models.Flow) (*models.Flow, error) {
	existing, err := s.persistence.Flows().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(flow); err != nil {
		return nil, err
	}

	flow.ID = id
	flow.CreatedAt = existing.CreatedAt
	flow.Active = existing.Active

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return flow, nil
}

// Delete soft deletes a flow by its ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.persistence.Flows().ByID(ctx, id); err != nil {
		return err
	}

	if err := s.persistence.Flows().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	return nil
}

// Activate marks a flow as eligible for trigger detection. The flow is
// re-validated so definitions saved before a rule change cannot be
// activated in a shape the engine no longer accepts.
func (s *Service) Activate(ctx context.Context, id string) (*models.Flow, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate stops new executions of the flow from starting.
// Executions already running or waiting are unaffected and finish
// their journey.
func (s *Service) Deactivate(ctx context.Context, id string) (*models.Flow, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id string, active bool) (*models.Flow, error) {
	flow, err := s.persistence.Flows().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if active {
		if err := s.validator.Validate(flow); err != nil {
			return nil, err
		}
	}

	if flow.Active == active {
		return flow, nil
	}

	flow.Active = active

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}
