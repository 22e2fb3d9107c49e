package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/booking"
)

// PublicHandler serves the client booking flow.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

type slotsResponse struct {
	Date    string              `json:"date"`
	StaffID string              `json:"barber_id,omitempty"`
	Slots   []availability.Slot `json:"slots"`
}

type bookingResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	StaffID string `json:"barber_id,omitempty"`
}

// Slots answers GET /api/v1/public/slots?date=YYYY-MM-DD[&barber_id=uuid].
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Slots(r.Context(), strings.TrimSpace(q.Get("date")), q.Get("barber_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		Date:    res.Date.String(),
		StaffID: res.StaffID,
		Slots:   res.Slots,
	})
}

// Book answers POST /api/v1/public/bookings. An Idempotency-Key header makes
// retries return the booking created by the first attempt.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req booking.BookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	res, err := h.svc.Book(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	b := res.Booking
	httpx.WriteJSON(w, status, bookingResponse{
		ID:      b.ID,
		Status:  string(b.Status),
		Date:    b.Date.String(),
		Time:    b.Time.String(),
		StaffID: b.StaffID,
	})
}
