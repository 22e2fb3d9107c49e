package storage

import (
	"context"

	"github.com/md-rashed-zaman/barbershop/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type Notification struct {
	EventID    string
	BookingID  string
	Channel    string
	Recipient  string
	Status     string
	ProviderID string
	Error      string
}

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (event_id, booking_id, channel, recipient, status, provider_id, error)
		VALUES ($1, $2::uuid, $3, $4, $5, $6, $7)
	`, n.EventID, n.BookingID, n.Channel, n.Recipient, n.Status, n.ProviderID, n.Error)
	return err
}
