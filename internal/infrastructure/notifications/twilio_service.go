package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/jomaguevco/chatdex-sub001/domain"
)

// TwilioMessenger implements domain.Messenger over the Twilio WhatsApp API.
// Delivery is fire-and-observe: failures are logged and surfaced, the core
// never retries them.
type TwilioMessenger struct {
	client     *twilio.RestClient
	fromNumber string
	logger     *slog.Logger
}

// NewTwilioMessenger creates a Twilio-backed messenger. With no fromNumber
// configured it logs outbound messages instead of sending, which keeps local
// development working without credentials.
func NewTwilioMessenger(accountSID, authToken, fromNumber string, logger *slog.Logger) domain.Messenger {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioMessenger{
		client:     client,
		fromNumber: fromNumber,
		logger:     logger.With(slog.String("component", "twilio_messenger")),
	}
}

// SendMessage implements domain.Messenger.
func (t *TwilioMessenger) SendMessage(ctx context.Context, phone, text string) error {
	if t.fromNumber == "" {
		t.logger.Info("mock outbound message", slog.String("to", phone), slog.String("text", text))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + phone)
	params.SetFrom("whatsapp:" + t.fromNumber)
	params.SetBody(text)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendImage implements domain.Messenger.
func (t *TwilioMessenger) SendImage(ctx context.Context, phone, mediaURL, caption string) error {
	if t.fromNumber == "" {
		t.logger.Info("mock outbound image", slog.String("to", phone), slog.String("media_url", mediaURL))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + phone)
	params.SetFrom("whatsapp:" + t.fromNumber)
	params.SetBody(caption)
	params.SetMediaUrl([]string{mediaURL})

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}
	return nil
}
