package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/booking"
)

// AdminHandler serves the shop's day view and status actions. Callers are
// authenticated by the gateway.
type AdminHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewAdminHandler(svc *booking.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: logger}
}

type adminBookingItem struct {
	ID           string      `json:"id"`
	Date         string      `json:"date"`
	Time         string      `json:"time"`
	Status       string      `json:"status"`
	ClientName   string      `json:"client_name"`
	ClientPhone  string      `json:"client_phone"`
	ClientEmail  string      `json:"client_email,omitempty"`
	Service      serviceInfo `json:"service"`
	Barber       *barberInfo `json:"barber"`
	WhatsAppLink string      `json:"whatsapp_link,omitempty"`
	CreatedAt    string      `json:"created_at"`
}

type serviceInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type barberInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statusResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Changed      bool   `json:"changed"`
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
}

// List answers GET /api/v1/admin/bookings?date=YYYY-MM-DD.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.ListDay(r.Context(), strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]adminBookingItem, 0, len(details))
	for _, d := range details {
		item := adminBookingItem{
			ID:          d.ID,
			Date:        d.Date.String(),
			Time:        d.Time.String(),
			Status:      string(d.Status),
			ClientName:  d.ClientName,
			ClientPhone: d.ClientPhone,
			ClientEmail: d.ClientEmail,
			Service: serviceInfo{
				ID:    d.ServiceID,
				Name:  d.ServiceName,
				Price: d.ServicePrice.StringFixed(2),
			},
			WhatsAppLink: h.svc.ConfirmationLink(d.Booking),
			CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339),
		}
		if d.StaffID != "" {
			item.Barber = &barberInfo{ID: d.StaffID, Name: d.StaffName}
		}
		items = append(items, item)
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

// Confirm answers POST /api/v1/admin/bookings/{id}/confirm.
func (h *AdminHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, availability.StatusConfirmed)
}

// Cancel answers POST /api/v1/admin/bookings/{id}/cancel.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, availability.StatusCancelled)
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request, status availability.Status) {
	change, err := h.svc.UpdateStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, statusResponse{
		ID:           change.Booking.ID,
		Status:       string(change.Booking.Status),
		Changed:      change.Changed,
		WhatsAppLink: change.WhatsAppLink,
	})
}

// Routes registers the public and admin endpoints on mux.
func Routes(mux *http.ServeMux, public *PublicHandler, admin *AdminHandler) {
	mux.HandleFunc("GET /api/v1/public/slots", public.Slots)
	mux.HandleFunc("POST /api/v1/public/bookings", public.Book)
	mux.HandleFunc("GET /api/v1/admin/bookings", admin.List)
	mux.HandleFunc("POST /api/v1/admin/bookings/{id}/confirm", admin.Confirm)
	mux.HandleFunc("POST /api/v1/admin/bookings/{id}/cancel", admin.Cancel)
}
