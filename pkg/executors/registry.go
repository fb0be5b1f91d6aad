package executors

import (
	"fmt"
	"log/slog"

	"github.com/cobrex/cobrex/pkg/models"
)

// Registry maps action node kinds to their executors.
type Registry struct {
	logger    *slog.Logger
	executors map[models.NodeKind]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		executors: make(map[models.NodeKind]Executor),
	}
}

// Register adds an executor for its kind, replacing any previous one.
func (r *Registry) Register(executor Executor) {
	r.logger.Debug("Registering action executor", "kind", executor.Kind())
	r.executors[executor.Kind()] = executor
}

// ExecutorFor returns the executor registered for the kind.
func (r *Registry) ExecutorFor(kind models.NodeKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for node kind %q", kind)
	}

	return executor, nil
}

// Kinds returns the registered kinds.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}

	return kinds
}
