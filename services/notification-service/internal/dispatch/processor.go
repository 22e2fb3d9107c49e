// Package dispatch turns booking events into client notifications.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/barbershop/libs/events"
	"github.com/md-rashed-zaman/barbershop/libs/kafkax"
	"github.com/md-rashed-zaman/barbershop/libs/whatsapp"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/messaging"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/storage"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string) (bool, error)
}

type Store interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Config struct {
	CountryCode string
	ShopName    string
}

type Processor struct {
	inbox       Inbox
	store       Store
	whatsapp    messaging.Sender
	email       email.Sender
	countryCode string
	shopName    string
	logger      *slog.Logger
}

func NewProcessor(inbox Inbox, store Store, wa messaging.Sender, mail email.Sender, cfg Config, logger *slog.Logger) *Processor {
	if cfg.CountryCode == "" {
		cfg.CountryCode = whatsapp.DefaultCountryCode
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "Barbearia"
	}
	return &Processor{
		inbox:       inbox,
		store:       store,
		whatsapp:    wa,
		email:       mail,
		countryCode: cfg.CountryCode,
		shopName:    cfg.ShopName,
		logger:      logger,
	}
}

// Handle processes one booking event. A returned error leaves the event
// unrecorded so a retry sends it again; malformed events are dropped. Once a
// message has been delivered Handle never asks for a retry.
func (p *Processor) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID == "" {
		p.logger.Warn("event without id dropped", "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}
	eventType := meta.EventType
	if eventType == "" {
		eventType = msg.Topic
	}

	seen, err := p.inbox.Seen(ctx, meta.EventID)
	if err != nil {
		return err
	}
	if seen {
		p.logger.Info("duplicate event skipped", "event_id", meta.EventID)
		return nil
	}

	var payload events.BookingPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.BookingID == "" {
		p.logger.Error("invalid booking payload", "err", err, "event_id", meta.EventID)
		return p.record(ctx, meta.EventID)
	}

	notified := true
	switch {
	case eventType == events.BookingStatusChanged && payload.Status == "confirmed" && payload.PreviousStatus != "confirmed":
		err = p.sendConfirmation(ctx, meta.EventID, payload)
	case eventType == events.BookingCreated && payload.ClientEmail != "":
		err = p.sendReceipt(ctx, meta.EventID, payload)
	default:
		notified = false
		p.logger.Debug("event needs no notification", "event_id", meta.EventID, "event_type", eventType, "status", payload.Status)
	}
	if err != nil {
		return err
	}
	if err := p.record(ctx, meta.EventID); err != nil {
		if !notified {
			return err
		}
		// The message is out; a retry would deliver it twice.
		p.logger.Error("failed to record delivered event", "err", err, "event_id", meta.EventID)
	}
	return nil
}

func (p *Processor) sendConfirmation(ctx context.Context, eventID string, payload events.BookingPayload) error {
	n := storage.Notification{
		EventID:   eventID,
		BookingID: payload.BookingID,
		Channel:   ChannelWhatsApp,
		Recipient: whatsapp.Address(payload.ClientPhone, p.countryCode),
	}
	if n.Recipient == "" {
		n.Status = storage.StatusSkipped
		n.Error = "client phone has no digits"
		return p.store.Insert(ctx, n)
	}

	providerID, err := p.whatsapp.Send(ctx, n.Recipient, whatsapp.ConfirmationMessage)
	return p.finish(ctx, n, p.whatsapp.Provider(), providerID, err)
}

func (p *Processor) sendReceipt(ctx context.Context, eventID string, payload events.BookingPayload) error {
	n := storage.Notification{
		EventID:   eventID,
		BookingID: payload.BookingID,
		Channel:   ChannelEmail,
		Recipient: payload.ClientEmail,
	}
	providerID, err := p.email.Send(ctx, email.Message{
		To:      payload.ClientEmail,
		ToName:  payload.ClientName,
		Subject: fmt.Sprintf("%s: recebemos seu agendamento", p.shopName),
		Body:    ReceiptBody(p.shopName, payload),
	})
	return p.finish(ctx, n, p.email.Provider(), providerID, err)
}

// finish stores the outcome of a send. The send error is returned so the
// consumer retries the event.
func (p *Processor) finish(ctx context.Context, n storage.Notification, provider, providerID string, sendErr error) error {
	n.ProviderID = providerID
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = storage.StatusSent
	}
	if err := p.store.Insert(ctx, n); err != nil {
		p.logger.Error("failed to persist notification", "err", err, "booking_id", n.BookingID)
		if sendErr == nil {
			// Already delivered; do not send twice over a bookkeeping failure.
			return nil
		}
	}
	if sendErr != nil {
		p.logger.Error("notification send failed", "err", sendErr, "channel", n.Channel, "provider", provider, "booking_id", n.BookingID)
		return sendErr
	}
	p.logger.Info("notification sent", "channel", n.Channel, "provider", provider, "booking_id", n.BookingID)
	return nil
}

func (p *Processor) record(ctx context.Context, eventID string) error {
	_, err := p.inbox.Record(ctx, eventID)
	return err
}

// ReceiptBody is the plain text email sent when a booking request arrives.
func ReceiptBody(shopName string, payload events.BookingPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s!\n\n", payload.ClientName)
	fmt.Fprintf(&b, "Recebemos seu pedido de agendamento na %s.\n\n", shopName)
	if payload.ServiceName != "" {
		fmt.Fprintf(&b, "Serviço: %s\n", payload.ServiceName)
	}
	fmt.Fprintf(&b, "Data: %s\n", displayDate(payload.Date))
	fmt.Fprintf(&b, "Horário: %s\n\n", payload.Time)
	b.WriteString("Você receberá uma mensagem no WhatsApp assim que confirmarmos o horário.\n")
	return b.String()
}

func displayDate(raw string) string {
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw
	}
	return d.Format("02/01/2006")
}
