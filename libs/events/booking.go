// Package events holds the wire contracts of the events services exchange
// over Kafka.
package events

// Booking topics. The Kafka topic equals the event type.
const (
	BookingCreated       = "booking.created.v1"
	BookingStatusChanged = "booking.status_changed.v1"
)

// BookingPayload is the body of every booking event.
type BookingPayload struct {
	BookingID      string `json:"booking_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	ServiceID      string `json:"service_id"`
	ServiceName    string `json:"service_name,omitempty"`
	BarberID       string `json:"barber_id,omitempty"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	ClientEmail    string `json:"client_email,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}
