// Package cmd provides common initialization for the command-line
// binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/persistence/file"
	"github.com/cobrex/cobrex/pkg/persistence/postgresql"
	"github.com/cobrex/cobrex/pkg/persistence/sqlite"
)

// NewPersistence creates the storage backend selected by the database
// URL scheme: postgres://, sqlite:// or file://. Anything else falls
// back to the file backend, which needs no infrastructure.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		persist, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize postgres persistence", "error", err)
			panic(err)
		}

		return persist
	case strings.HasPrefix(databaseURL, "sqlite://"):
		persist, err := sqlite.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize sqlite persistence", "error", err)
			panic(err)
		}

		return persist
	default:
		return file.NewPersistence(databaseURL)
	}
}
