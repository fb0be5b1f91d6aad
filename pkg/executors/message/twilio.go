package message

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender delivers messages through the Twilio REST API. The
// addresses arrive fully qualified; for WhatsApp that means the
// "whatsapp:" prefix Twilio expects is already applied.
type TwilioSender struct {
	client *twilio.RestClient
	logger *slog.Logger
}

// NewTwilioSender creates a Twilio-backed sender.
func NewTwilioSender(accountSID, authToken string, logger *slog.Logger) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio account SID and auth token must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{client: client, logger: logger}, nil
}

// Send delivers one outbound message.
func (s *TwilioSender) Send(ctx context.Context, msg OutboundMessage) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(msg.From)
	params.SetBody(msg.Body)

	_, err := s.client.Api.CreateMessage(params)
	if err != nil {
		s.logger.Error("Twilio message delivery failed", "to", msg.To, "error", err)

		return fmt.Errorf("failed to send message to %s: %w", msg.To, err)
	}

	s.logger.Debug("Twilio message sent", "to", msg.To, "dedup_key", msg.DedupKey)

	return nil
}

// LogSender logs outbound messages instead of delivering them. It is
// used in development when no Twilio credentials are configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a logging sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, msg OutboundMessage) error {
	s.logger.Info("Outbound message (dry run)",
		"to", msg.To,
		"from", msg.From,
		"body", msg.Body,
		"dedup_key", msg.DedupKey)

	return nil
}
