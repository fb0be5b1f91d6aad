// Package file provides a file-based persistence backend storing one
// JSON document per record. It is intended for development and tests;
// atomicity across processes is not provided, only across goroutines
// of one process.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cobrex/cobrex/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the
// file system.
type Persistence struct {
	root          string
	flowRepo      *FlowRepository
	executionRepo *ExecutionRepository
	debtorRepo    *DebtorRepository
}

// NewPersistence creates a file persistence rooted at the given
// directory. Accepts "file://./data" URLs or a bare path.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	// One lock serializes the execution atomic operations; the
	// per-record reads and writes share it for simplicity.
	mu := &sync.Mutex{}

	debtorRepo := NewDebtorRepository(cleanRoot, mu)

	return &Persistence{
		root:          cleanRoot,
		flowRepo:      NewFlowRepository(cleanRoot, mu),
		executionRepo: NewExecutionRepository(cleanRoot, mu),
		debtorRepo:    debtorRepo,
	}
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) Flows() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) Debtors() persistence.DebtorRepository {
	return p.debtorRepo
}

// readRecord loads one JSON document into the given value. Returns
// fs.ErrNotExist when the record is absent.
func readRecord(dir, id string, into any) error {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode record %s: %w", id, err)
	}

	return nil
}

// writeRecord stores one JSON document, creating the directory on
// first use.
func writeRecord(dir, id string, value any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to write record %s: %w", id, err)
	}

	return nil
}

// listIDs returns the record IDs present in a directory.
func listIDs(dir string) ([]string, error) {
	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list records in %s: %w", dir, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
