// Package sqlite provides the SQLite persistence backend, suited to
// single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/persistence/sqlbase"

	_ "github.com/mattn/go-sqlite3"
)

// Persistence implements the persistence layer for SQLite. Shares the
// sqlbase repositories with the PostgreSQL backend.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	flowRepo      *sqlbase.FlowRepository
	executionRepo *sqlbase.ExecutionRepository
	debtorRepo    *sqlbase.DebtorRepository
}

// NewPersistence opens or creates the database file, runs migrations
// and wires the repositories. Accepts "sqlite:///path/to.db" URLs or a
// bare path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	path := strings.TrimPrefix(databaseURL, "sqlite://")

	database, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY races between the repositories.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		flowRepo:      sqlbase.NewFlowRepository(database, logger),
		executionRepo: sqlbase.NewExecutionRepository(database, logger),
		debtorRepo:    sqlbase.NewDebtorRepository(database, logger),
	}, nil
}

// Close closes the database.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database is reachable.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
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
