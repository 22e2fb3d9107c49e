package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	"github.com/md-rashed-zaman/barbershop/services/catalog-service/internal/storage"
)

const maxNameLength = 80

type Handler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Routes registers the public listings and the admin catalog endpoints.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/public/services", h.listServices(true))
	mux.HandleFunc("GET /api/v1/public/barbers", h.listBarbers(true))
	mux.HandleFunc("GET /api/v1/admin/services", h.listServices(false))
	mux.HandleFunc("POST /api/v1/admin/services", h.CreateService)
	mux.HandleFunc("PATCH /api/v1/admin/services/{id}", h.SetServiceActive)
	mux.HandleFunc("GET /api/v1/admin/barbers", h.listBarbers(false))
	mux.HandleFunc("POST /api/v1/admin/barbers", h.CreateBarber)
	mux.HandleFunc("PATCH /api/v1/admin/barbers/{id}", h.SetBarberActive)
}

type serviceResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          bool   `json:"active"`
	CreatedAt       string `json:"created_at"`
}

type barberResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

func toServiceResponse(s storage.Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID,
		Name:            s.Name,
		Price:           s.Price.StringFixed(2),
		DurationMinutes: s.DurationMinutes,
		Active:          s.Active,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toBarberResponse(b storage.Barber) barberResponse {
	return barberResponse{
		ID:        b.ID,
		Name:      b.Name,
		Active:    b.Active,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) listServices(activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.repo.ListServices(r.Context(), activeOnly)
		if err != nil {
			h.logger.Error("list services failed", "err", err)
			http.Error(w, "failed to list services", http.StatusInternalServerError)
			return
		}
		out := make([]serviceResponse, 0, len(items))
		for _, s := range items {
			out = append(out, toServiceResponse(s))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func (h *Handler) listBarbers(activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.repo.ListBarbers(r.Context(), activeOnly)
		if err != nil {
			h.logger.Error("list barbers failed", "err", err)
			http.Error(w, "failed to list barbers", http.StatusInternalServerError)
			return
		}
		out := make([]barberResponse, 0, len(items))
		for _, b := range items {
			out = append(out, toBarberResponse(b))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string          `json:"name"`
		Price           decimal.Decimal `json:"price"`
		DurationMinutes int             `json:"duration_minutes"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxNameLength {
		http.Error(w, "name is required (max 80 characters)", http.StatusBadRequest)
		return
	}
	if req.Price.IsNegative() || req.Price.Exponent() < -2 {
		http.Error(w, "price must be a non-negative amount with at most 2 decimals", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 8*60 {
		http.Error(w, "duration_minutes must be between 1 and 480", http.StatusBadRequest)
		return
	}

	s, err := h.repo.CreateService(r.Context(), req.Name, req.Price, req.DurationMinutes)
	if err != nil {
		h.logger.Error("create service failed", "err", err)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toServiceResponse(s))
}

func (h *Handler) CreateBarber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.Name) > maxNameLength {
		http.Error(w, "name is required (max 80 characters)", http.StatusBadRequest)
		return
	}

	b, err := h.repo.CreateBarber(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("create barber failed", "err", err)
		http.Error(w, "failed to create barber", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBarberResponse(b))
}

func (h *Handler) SetServiceActive(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.repo.SetServiceActive)
}

func (h *Handler) SetBarberActive(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.repo.SetBarberActive)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, set func(context.Context, string, bool) error) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Active == nil {
		http.Error(w, "active is required", http.StatusBadRequest)
		return
	}
	if err := set(r.Context(), r.PathValue("id"), *req.Active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.logger.Error("update active flag failed", "err", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
