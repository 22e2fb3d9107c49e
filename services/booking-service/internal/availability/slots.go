package availability

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Occupies reports whether a reservation in this status blocks its slot.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ActiveStatuses are the stored statuses that block a slot; storage binds
// them into its occupancy queries.
var ActiveStatuses = []string{string(StatusPending), string(StatusConfirmed)}

// Reservation is the part of a booking the engine reads. An empty StaffID
// means the client accepted any barber.
type Reservation struct {
	Date    Date
	Time    TimeOfDay
	StaffID string
	Status  Status
}

// Query asks for the slots of Date as seen by StaffID (empty: any barber) at
// instant Now. Now must already be in the shop's location.
type Query struct {
	Date    Date
	StaffID string
	Now     time.Time
}

type Slot struct {
	Start     TimeOfDay `json:"time"`
	Available bool      `json:"available"`
}

// StaffCollides reports whether a reservation held by reservedStaff blocks a
// view filtered by filter. A reservation without a barber blocks every view,
// and an unfiltered view is blocked by every barber.
func StaffCollides(reservedStaff, filter string) bool {
	return filter == "" || reservedStaff == "" || reservedStaff == filter
}

// Occupied reports whether any active reservation takes slot t of date for
// the staff filter.
func Occupied(date Date, t TimeOfDay, staffFilter string, reservations []Reservation) bool {
	for _, r := range reservations {
		if r.Date == date && r.Time == t && r.Status.Occupies() && StaffCollides(r.StaffID, staffFilter) {
			return true
		}
	}
	return false
}

// IsPast reports whether slot t of date has already started at now. Only
// now's own calendar day has past slots.
func IsPast(date Date, t TimeOfDay, now time.Time) bool {
	return date == DateOf(now) && t <= TimeOfDayOf(now)
}

// ComputeSlots returns every candidate slot of q.Date in ascending order,
// each flagged available unless occupied or past. Reservations for other
// dates are ignored, so callers may pass a wider set.
func ComputeSlots(q Query, reservations []Reservation, cfg Config) []Slot {
	candidates := cfg.Candidates()
	slots := make([]Slot, len(candidates))
	for i, t := range candidates {
		slots[i] = Slot{
			Start:     t,
			Available: !Occupied(q.Date, t, q.StaffID, reservations) && !IsPast(q.Date, t, q.Now),
		}
	}
	return slots
}
