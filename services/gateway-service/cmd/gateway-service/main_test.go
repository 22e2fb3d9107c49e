package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/barbershop/libs/auth"
)

const testSecret = "test-secret"

func TestRequireRole(t *testing.T) {
	h := requireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("X-Role", "member")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK.Header.Set("X-Role", auth.RoleAdmin)
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}
}

func TestRequireAuthHS256(t *testing.T) {
	token, err := auth.SignHS256(auth.NewClaims("user-1", "owner@shop.example", auth.RoleAdmin, time.Now(), time.Hour), testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "user-1" || r.Header.Get("X-Role") != auth.RoleAdmin {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), testSecret)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-User-Id", "spoofed")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}
}

func named(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, name)
	})
}

func TestRouting(t *testing.T) {
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{Auth: named("auth"), Catalog: named("catalog"), Booking: named("booking")}, testSecret, nil)
	token, err := auth.SignHS256(auth.NewClaims("user-1", "", auth.RoleAdmin, time.Now(), time.Hour), testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	cases := []struct {
		method, path string
		bearer       bool
		wantCode     int
		wantBody     string
	}{
		{http.MethodPost, "/api/v1/auth/login", false, http.StatusOK, "auth"},
		{http.MethodGet, "/api/v1/public/services", false, http.StatusOK, "catalog"},
		{http.MethodGet, "/api/v1/public/barbers", false, http.StatusOK, "catalog"},
		{http.MethodGet, "/api/v1/public/slots?date=2026-03-10", false, http.StatusOK, "booking"},
		{http.MethodPost, "/api/v1/public/bookings", false, http.StatusOK, "booking"},
		{http.MethodGet, "/api/v1/admin/bookings?date=2026-03-10", false, http.StatusUnauthorized, ""},
		{http.MethodGet, "/api/v1/admin/bookings?date=2026-03-10", true, http.StatusOK, "booking"},
		{http.MethodPost, "/api/v1/admin/bookings/abc/confirm", true, http.StatusOK, "booking"},
		{http.MethodPatch, "/api/v1/admin/services/abc", true, http.StatusOK, "catalog"},
		{http.MethodPost, "/api/v1/admin/barbers", false, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.bearer {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != tc.wantCode {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.wantCode, rr.Code)
		}
		if tc.wantBody != "" && rr.Body.String() != tc.wantBody {
			t.Fatalf("%s %s: routed to %q, want %q", tc.method, tc.path, rr.Body.String(), tc.wantBody)
		}
	}
}

func TestNonAdminRoleForbidden(t *testing.T) {
	mux := http.NewServeMux()
	registerRoutes(mux, upstreams{Auth: named("auth"), Catalog: named("catalog"), Booking: named("booking")}, testSecret, nil)
	token, err := auth.SignHS256(auth.NewClaims("user-2", "", "staff", time.Now(), time.Hour), testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
