package inbox

import (
	"context"

	"github.com/md-rashed-zaman/barbershop/libs/db"
)

// Repository remembers which events a consumer has fully processed.
type Repository struct {
	db       db.Querier
	consumer string
}

func NewRepository(q db.Querier, consumer string) *Repository {
	return &Repository{db: q, consumer: consumer}
}

func (r *Repository) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_events WHERE consumer = $1 AND event_id = $2)
	`, r.consumer, eventID).Scan(&seen)
	return seen, err
}

// Record marks eventID processed. It returns false if it already was.
func (r *Repository) Record(ctx context.Context, eventID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, r.consumer, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
