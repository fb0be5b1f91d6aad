// Package main provides the Cobrex API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cobrex/cobrex/pkg/cmd"
	"github.com/cobrex/cobrex/pkg/engine"
	"github.com/cobrex/cobrex/pkg/persistence"
	"github.com/cobrex/cobrex/pkg/tracing"
	"github.com/cobrex/cobrex/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	credentials cmd.ExecutorCredentials
	tracing     bool
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	credentials cmd.ExecutorCredentials,
	tracingEnabled bool,
) *API {
	return &API{
		logger:      logger,
		persistence: persist,
		credentials: credentials,
		tracing:     tracingEnabled,
	}
}

func (a *API) Start(ctx context.Context, port int) error {
	cfg := engine.Config{Logger: a.logger}

	if a.tracing {
		tracer, err := tracing.NewTracer(ctx, "cobrex-api")
		if err != nil {
			return err
		}

		cfg.Tracer = tracer
	}

	registry := cmd.NewExecutorRegistry(a.logger, a.persistence, a.credentials)
	eng := engine.New(a.persistence, registry, cfg)

	app := web.NewApp(a.persistence, eng)

	return app.Listen(":" + strconv.Itoa(port))
}
