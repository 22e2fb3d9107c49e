package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/md-rashed-zaman/barbershop/services/catalog-service/internal/storage"
)

func newTestMux(t *testing.T) (*http.ServeMux, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	mux := http.NewServeMux()
	New(storage.NewRepository(mock), slog.New(slog.NewTextHandler(io.Discard, nil))).Routes(mux)
	return mux, mock
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(method, target, r))
	return rr
}

func TestPublicServicesListsActiveOnly(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectQuery("FROM services").WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "price", "duration_minutes", "active", "created_at"}).
			AddRow("a", "Corte", "45", 30, true, time.Now()))

	rr := do(mux, http.MethodGet, "/api/v1/public/services", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out []serviceResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Price != "45.00" {
		t.Fatalf("unexpected services %+v", out)
	}
}

func TestPublicBarbersEmptyListIsArray(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectQuery("FROM barbers").WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active", "created_at"}))

	rr := do(mux, http.MethodGet, "/api/v1/public/barbers", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", rr.Body.String())
	}
}

func TestCreateServiceValidation(t *testing.T) {
	mux, _ := newTestMux(t)
	for _, body := range []string{
		`{"name":"","price":"10","duration_minutes":30}`,
		`{"name":"Corte","price":"-1","duration_minutes":30}`,
		`{"name":"Corte","price":"10.001","duration_minutes":30}`,
		`{"name":"Corte","price":"10","duration_minutes":0}`,
	} {
		if rr := do(mux, http.MethodPost, "/api/v1/admin/services", body); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestCreateService(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectQuery("INSERT INTO services").
		WithArgs(pgxmock.AnyArg(), "Corte", "45.00", 30).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	rr := do(mux, http.MethodPost, "/api/v1/admin/services", `{"name":" Corte ","price":45,"duration_minutes":30}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestToggleBarber(t *testing.T) {
	mux, mock := newTestMux(t)
	mock.ExpectExec("UPDATE barbers").WithArgs("b1", false).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE barbers").WithArgs("b2", true).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if rr := do(mux, http.MethodPatch, "/api/v1/admin/barbers/b1", `{"active":false}`); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodPatch, "/api/v1/admin/barbers/b2", `{"active":true}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := do(mux, http.MethodPatch, "/api/v1/admin/barbers/b3", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing flag, got %d", rr.Code)
	}
}
