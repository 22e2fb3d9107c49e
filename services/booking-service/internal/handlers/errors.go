package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/booking"
)

// writeError maps booking errors to HTTP statuses. Conflicts are checked
// before insert failures because a lost race is both.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrSlotTaken):
		http.Error(w, "this time is no longer available, please choose another time", http.StatusConflict)
	case errors.Is(err, booking.ErrAvailabilityUnknown):
		w.Header().Set("Retry-After", "5")
		http.Error(w, "availability is temporarily unknown, please try again", http.StatusServiceUnavailable)
	case errors.Is(err, booking.ErrInsertFailed):
		http.Error(w, "could not save the booking, please try again", http.StatusInternalServerError)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
