package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers a chat message to a phone number.
type Sender interface {
	Send(ctx context.Context, to string, body string) (providerID string, err error)
	Provider() string
}

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioWhatsApp sends WhatsApp messages through the Twilio Messaging API.
// Both numbers use the "whatsapp:+<digits>" address form.
type TwilioWhatsApp struct {
	api  messageCreator
	from string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

func NewTwilioWhatsApp(cfg TwilioConfig) (*TwilioWhatsApp, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("twilio credentials not configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   cfg.AccountSID,
		Password:   cfg.AuthToken,
		AccountSid: cfg.AccountSID,
	})
	return &TwilioWhatsApp{api: client.Api, from: whatsappAddress(cfg.From)}, nil
}

func (s *TwilioWhatsApp) Provider() string { return "twilio-whatsapp" }

func (s *TwilioWhatsApp) Send(_ context.Context, to string, body string) (string, error) {
	params := &openapi.CreateMessageParams{}
	params.SetTo(whatsappAddress(to))
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp != nil && resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}

func whatsappAddress(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "whatsapp:") {
		return v
	}
	return "whatsapp:" + v
}

// Noop accepts every message without sending it.
type Noop struct{}

func (Noop) Provider() string { return "noop" }

func (Noop) Send(context.Context, string, string) (string, error) { return "", nil }
