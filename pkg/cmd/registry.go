package cmd

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/executors/message"
	"github.com/cobrex/cobrex/pkg/executors/negotiate"
	"github.com/cobrex/cobrex/pkg/executors/status"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// ExecutorCredentials carries the provider credentials of the action
// executors. Empty credentials select the dry-run implementations, so
// a development setup works without any external account.
type ExecutorCredentials struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	OpenAIAPIKey     string
	OpenAIModel      string
}

// NewExecutorRegistry builds the registry with every action executor
// wired.
func NewExecutorRegistry(
	logger *slog.Logger,
	persist persistence.Persistence,
	creds ExecutorCredentials,
) *executors.Registry {
	clock := clockwork.NewRealClock()

	sender := newSender(logger, creds)
	assistant := newAssistant(logger, creds)

	registry := executors.NewRegistry(logger)
	registry.Register(message.NewExecutor(sender, persist.Debtors(), clock))
	registry.Register(status.NewExecutor(persist.Debtors()))
	registry.Register(negotiate.NewExecutor(assistant, sender, persist.Debtors(), clock))

	return registry
}

func newSender(logger *slog.Logger, creds ExecutorCredentials) message.Sender {
	if creds.TwilioAccountSID == "" || creds.TwilioAuthToken == "" {
		logger.Warn("Twilio credentials missing, outbound messages will only be logged")

		return message.NewLogSender(logger)
	}

	sender, err := message.NewTwilioSender(creds.TwilioAccountSID, creds.TwilioAuthToken, logger)
	if err != nil {
		panic(err)
	}

	return sender
}

func newAssistant(logger *slog.Logger, creds ExecutorCredentials) negotiate.Assistant {
	if creds.OpenAIAPIKey == "" {
		logger.Warn("OpenAI API key missing, negotiation messages use the built-in template")

		return negotiate.TemplateAssistant{}
	}

	assistant, err := negotiate.NewOpenAIAssistant(creds.OpenAIAPIKey, creds.OpenAIModel)
	if err != nil {
		panic(err)
	}

	return assistant
}
