package model

import (
	"time"

	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/shopspring/decimal"
)

// Booking is one client appointment. StaffID is empty when the client
// accepted any barber; ClientEmail is optional.
type Booking struct {
	ID          string
	ServiceID   string
	StaffID     string
	Date        availability.Date
	Time        availability.TimeOfDay
	ClientName  string
	ClientPhone string
	ClientEmail string
	Status      availability.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingDetail is a booking joined with its catalog names for the admin day view.
type BookingDetail struct {
	Booking
	ServiceName  string
	ServicePrice decimal.Decimal
	StaffName    string
}

// ServiceRef is the catalog data a booking needs from its service.
type ServiceRef struct {
	ID              string
	Name            string
	Price           decimal.Decimal
	DurationMinutes int
	Active          bool
}

// StaffRef is the catalog data a booking needs from its barber.
type StaffRef struct {
	ID     string
	Name   string
	Active bool
}
