// Package main provides the resume scheduler: it wakes up waiting
// executions whose resume time has passed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/cobrex/cobrex/pkg/cmd"
	"github.com/cobrex/cobrex/pkg/engine"
	"github.com/cobrex/cobrex/pkg/log"
	"github.com/cobrex/cobrex/pkg/resumer"
)

func main() {
	_ = godotenv.Load()

	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "cobrex-scheduler",
		Usage:                 "Resume waiting executions that are due",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "cron",
				Usage:   "Cron expression to run passes on; empty runs one pass and exits",
				Sources: cli.EnvVars("SCHEDULER_CRON"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum executions resumed per pass",
				Value:   resumer.DefaultBatchSize,
				Sources: cli.EnvVars("SCHEDULER_BATCH_SIZE"),
			},
			&cli.StringFlag{
				Name:    "twilio-account-sid",
				Usage:   "Twilio account SID for outbound messages",
				Sources: cli.EnvVars("TWILIO_ACCOUNT_SID"),
			},
			&cli.StringFlag{
				Name:    "twilio-auth-token",
				Usage:   "Twilio auth token for outbound messages",
				Sources: cli.EnvVars("TWILIO_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key for negotiation drafting",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "OpenAI model for negotiation drafting",
				Sources: cli.EnvVars("OPENAI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Cobrex scheduler")

			persist := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			registry := cmd.NewExecutorRegistry(logger, persist, cmd.ExecutorCredentials{
				TwilioAccountSID: command.String("twilio-account-sid"),
				TwilioAuthToken:  command.String("twilio-auth-token"),
				OpenAIAPIKey:     command.String("openai-api-key"),
				OpenAIModel:      command.String("openai-model"),
			})

			clock := clockwork.NewRealClock()
			eng := engine.New(persist, registry, engine.Config{Logger: logger, Clock: clock})
			r := resumer.New(persist, eng, clock, logger, command.Int("batch-size"))

			pass := func() {
				resumed, err := r.Run(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Scheduler pass failed", "error", err)

					return
				}

				logger.InfoContext(ctx, "Scheduler pass done", "resumed", resumed)
			}

			expr := command.String("cron")
			if expr == "" {
				pass()

				return nil
			}

			return runOnSchedule(ctx, logger, expr, pass)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// runOnSchedule runs the pass on the cron expression until the process
// is signalled to stop.
func runOnSchedule(ctx context.Context, logger *slog.Logger, expr string, pass func()) error {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if _, err := c.AddFunc(expr, pass); err != nil {
		return err
	}

	c.Start()
	logger.InfoContext(ctx, "Scheduler running on schedule", "cron", expr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	<-c.Stop().Done()

	return nil
}
