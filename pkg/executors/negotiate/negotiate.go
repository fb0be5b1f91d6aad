// Package negotiate implements the executor opening an AI-assisted
// negotiation with a debtor: a language model drafts the opening
// message and it is delivered through the flow's channel.
package negotiate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/executors/message"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// Assistant drafts one negotiation message for a debtor.
type Assistant interface {
	Draft(ctx context.Context, objective string, snapshot *models.DebtorSnapshot) (string, error)
}

// Executor drafts a negotiation opener and sends it like any other
// outbound message, recording the contact on the debtor.
type Executor struct {
	assistant Assistant
	sender    message.Sender
	debtors   persistence.DebtorRepository
	clock     clockwork.Clock
}

// NewExecutor creates a negotiate executor.
func NewExecutor(assistant Assistant, sender message.Sender, debtors persistence.DebtorRepository, clock clockwork.Clock) *Executor {
	return &Executor{assistant: assistant, sender: sender, debtors: debtors, clock: clock}
}

func (e *Executor) Kind() models.NodeKind {
	return models.KindNegotiate
}

func (e *Executor) Execute(ctx context.Context, input executors.Input, logger *slog.Logger) (*executors.Result, error) {
	cfg, err := input.Node().NegotiateConfig()
	if err != nil {
		return nil, err
	}

	if input.Snapshot.Phone == "" {
		return nil, fmt.Errorf("debtor %s has no phone number", input.DebtorID)
	}

	body, err := e.assistant.Draft(ctx, cfg.Objective, input.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to draft negotiation message for debtor %s: %w", input.DebtorID, err)
	}

	msg := message.OutboundMessage{
		To:       message.Address(input.Channel.Provider, input.Snapshot.Phone),
		From:     message.Address(input.Channel.Provider, input.Channel.From),
		Body:     body,
		DedupKey: input.IdempotencyKey(),
	}

	if err := e.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send negotiation message to debtor %s: %w", input.DebtorID, err)
	}

	if err := e.debtors.TouchContact(ctx, input.DebtorID, e.clock.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record contact with debtor %s: %w", input.DebtorID, err)
	}

	logger.Info("Negotiation opened",
		"debtor_id", input.DebtorID,
		"objective", cfg.Objective)

	return &executors.Result{
		Detail: fmt.Sprintf("negotiation opened with %s", input.Snapshot.Phone),
	}, nil
}
