// Package message implements the executor sending templated collection
// messages to debtors.
package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/cobrex/cobrex/pkg/executors"
	"github.com/cobrex/cobrex/pkg/models"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// OutboundMessage is one message handed to a Sender. DedupKey
// identifies the action call so transports able to deduplicate can
// suppress resends of the same step.
type OutboundMessage struct {
	To       string
	From     string
	Body     string
	DedupKey string
}

// Sender delivers a message over a concrete channel.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// Executor sends the rendered template through the flow's channel and
// records the contact on the debtor, which is what keeps the no-contact
// trigger from re-selecting freshly messaged debtors.
type Executor struct {
	sender  Sender
	debtors persistence.DebtorRepository
	clock   clockwork.Clock
}

// NewExecutor creates a message executor.
func NewExecutor(sender Sender, debtors persistence.DebtorRepository, clock clockwork.Clock) *Executor {
	return &Executor{sender: sender, debtors: debtors, clock: clock}
}

func (e *Executor) Kind() models.NodeKind {
	return models.KindMessage
}

func (e *Executor) Execute(ctx context.Context, input executors.Input, logger *slog.Logger) (*executors.Result, error) {
	cfg, err := input.Node().MessageConfig()
	if err != nil {
		return nil, err
	}

	if input.Snapshot.Phone == "" {
		return nil, fmt.Errorf("debtor %s has no phone number", input.DebtorID)
	}

	body := Render(cfg.Template, input.Snapshot)

	msg := OutboundMessage{
		To:       Address(input.Channel.Provider, input.Snapshot.Phone),
		From:     Address(input.Channel.Provider, input.Channel.From),
		Body:     body,
		DedupKey: input.IdempotencyKey(),
	}

	if err := e.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message to debtor %s: %w", input.DebtorID, err)
	}

	if err := e.debtors.TouchContact(ctx, input.DebtorID, e.clock.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to record contact with debtor %s: %w", input.DebtorID, err)
	}

	logger.Info("Message sent",
		"debtor_id", input.DebtorID,
		"provider", input.Channel.Provider,
		"dedup_key", msg.DedupKey)

	return &executors.Result{
		Detail: fmt.Sprintf("sent %s message to %s", input.Channel.Provider, input.Snapshot.Phone),
	}, nil
}

// Address qualifies a phone number for the channel provider. Twilio
// routes WhatsApp traffic through prefixed addresses.
func Address(provider, phone string) string {
	if provider == "whatsapp" && !strings.HasPrefix(phone, "whatsapp:") {
		return "whatsapp:" + phone
	}

	return phone
}
