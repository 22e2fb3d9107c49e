package outbox

import "github.com/md-rashed-zaman/barbershop/libs/events"

const (
	EventBookingCreated       = events.BookingCreated
	EventBookingStatusChanged = events.BookingStatusChanged
)

// Event is the domain event envelope written to the outbox table in the same
// transaction as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type BookingPayload = events.BookingPayload
