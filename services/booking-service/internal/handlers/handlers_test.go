package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/storage"
)

const (
	serviceID = "2f1e7c0a-8d7b-4c55-9a40-3c1b2f0e9d11"
	staffA    = "6b0d2c4e-1f3a-4b5c-8d9e-0a1b2c3d4e5f"
	bookingID = "9c8b7a6d-5e4f-4a3b-2c1d-0e9f8a7b6c5d"
)

var fixedNow = time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)

func newTestMux(t *testing.T) (*http.ServeMux, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := booking.NewService(storage.NewBookingRepository(mock), outbox.NewRepository(), booking.Options{
		Location: time.FixedZone("BRT", -3*60*60),
		Logger:   logger,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	mux := http.NewServeMux()
	Routes(mux, NewPublicHandler(svc, logger), NewAdminHandler(svc, logger))
	return mux, mock
}

func serve(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestSlotsEndpoint(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectQuery("FROM bookings").WithArgs("2026-03-11", availability.ActiveStatuses).
		WillReturnRows(pgxmock.NewRows([]string{"date", "time", "barber_id", "status"}).
			AddRow("2026-03-11", "08:30", "", "pending"))

	rr := serve(mux, http.MethodGet, "/api/v1/public/slots?date=2026-03-11", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Date  string `json:"date"`
		Slots []struct {
			Time      string `json:"time"`
			Available bool   `json:"available"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2026-03-11" || len(resp.Slots) != 24 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Slots[0].Time != "08:00" || !resp.Slots[0].Available {
		t.Fatalf("expected 08:00 available, got %+v", resp.Slots[0])
	}
	if resp.Slots[1].Time != "08:30" || resp.Slots[1].Available {
		t.Fatalf("expected 08:30 taken, got %+v", resp.Slots[1])
	}
}

func TestSlotsEndpoint_FetchFailureIs503(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectQuery("FROM bookings").WithArgs("2026-03-11", availability.ActiveStatuses).WillReturnError(errors.New("timeout"))

	rr := serve(mux, http.MethodGet, "/api/v1/public/slots?date=2026-03-11", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), `"slots"`) {
		t.Fatalf("no slots may be rendered: %s", rr.Body.String())
	}
}

func TestSlotsEndpoint_BadDateIs400(t *testing.T) {
	mux, _ := newTestMux(t)
	rr := serve(mux, http.MethodGet, "/api/v1/public/slots?date=11-03-2026", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func bookBody(t string) string {
	return fmt.Sprintf(`{"service_id":%q,"barber_id":%q,"date":"2026-03-11","time":%q,"client_name":"Ana","client_phone":"11999990000"}`, serviceID, staffA, t)
}

func expectCatalog(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("FROM services").WithArgs(serviceID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price", "duration_minutes", "active"}).AddRow(serviceID, "Corte", "45.00", 30, true))
	mock.ExpectQuery("FROM barbers").WithArgs(staffA).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active"}).AddRow(staffA, "João", true))
}

func TestBookEndpoint_Created(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectBegin()
	expectCatalog(mock)
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("slot:2026-03-11T10:00").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("2026-03-11", "10:00", staffA, availability.ActiveStatuses).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(serviceID, staffA, "2026-03-11", "10:00", "Ana", "11999990000", "", "pending").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(bookingID))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("booking", bookingID, outbox.EventBookingCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rr := serve(mux, http.MethodPost, "/api/v1/public/bookings", bookBody("10:00"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp bookingResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != bookingID || resp.Status != "pending" || resp.Time != "10:00" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBookEndpoint_TakenIs409(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectBegin()
	expectCatalog(mock)
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("slot:2026-03-11T10:00").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("2026-03-11", "10:00", staffA, availability.ActiveStatuses).WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	rr := serve(mux, http.MethodPost, "/api/v1/public/bookings", bookBody("10:00"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "choose another time") {
		t.Fatalf("expected choose-another-time message, got %q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestBookEndpoint_OffGridTimeIs400(t *testing.T) {
	mux, _ := newTestMux(t)
	rr := serve(mux, http.MethodPost, "/api/v1/public/bookings", bookBody("10:15"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestBookEndpoint_UnknownFieldIs400(t *testing.T) {
	mux, _ := newTestMux(t)
	rr := serve(mux, http.MethodPost, "/api/v1/public/bookings", `{"service_id":"x","price":"0"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminList(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectQuery("JOIN services").WithArgs("2026-03-11").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "service_id", "barber_id", "date", "time", "client_name", "client_phone", "client_email",
			"status", "created_at", "updated_at", "name", "price", "barber_name",
		}).
			AddRow(bookingID, serviceID, staffA, "2026-03-11", "10:00", "Ana", "11999990000", "", "confirmed", fixedNow, fixedNow, "Corte", "45", "João").
			AddRow("1d2c3b4a-5e6f-4a7b-8c9d-0e1f2a3b4c5d", serviceID, "", "2026-03-11", "11:00", "Bia", "11988887777", "", "pending", fixedNow, fixedNow, "Barba", "30.5", ""))

	rr := serve(mux, http.MethodGet, "/api/v1/admin/bookings?date=2026-03-11", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var items []adminBookingItem
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Service.Price != "45.00" || items[0].Barber == nil || items[0].WhatsAppLink == "" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].Service.Price != "30.50" || items[1].Barber != nil || items[1].WhatsAppLink != "" {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestAdminConfirm(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "service_id", "barber_id", "date", "time", "client_name", "client_phone", "client_email", "status", "created_at", "updated_at"}).
			AddRow(bookingID, serviceID, "", "2026-03-11", "10:00", "Ana", "11999990000", "", "pending", fixedNow, fixedNow))
	mock.ExpectQuery("UPDATE bookings").WithArgs(bookingID, "confirmed").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(fixedNow))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("booking", bookingID, outbox.EventBookingStatusChanged, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rr := serve(mux, http.MethodPost, "/api/v1/admin/bookings/"+bookingID+"/confirm", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp statusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "confirmed" || !resp.Changed || !strings.HasPrefix(resp.WhatsAppLink, "https://wa.me/5511999990000") {
		t.Fatalf("unexpected response %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAdminCancel_NotFound(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(bookingID).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	rr := serve(mux, http.MethodPost, "/api/v1/admin/bookings/"+bookingID+"/cancel", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %w", booking.ErrInsertFailed, booking.ErrSlotTaken), http.StatusConflict},
		{booking.ErrInsertFailed, http.StatusInternalServerError},
		{booking.ErrAvailabilityUnknown, http.StatusServiceUnavailable},
		{booking.ErrInvalidTransition, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeError(rr, logger, tc.err)
		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}
