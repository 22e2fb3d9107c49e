package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/barbershop/libs/auth"
)

type upstreams struct {
	Auth    http.Handler
	Catalog http.Handler
	Booking http.Handler
}

func newProxy(raw string) (http.Handler, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(u)
	proxy.Transport = otelhttp.NewTransport(http.DefaultTransport)
	return proxy, nil
}

// registerRoutes maps the public, auth and admin surfaces onto upstreams.
// Admin routes require a valid access token with the admin role.
func registerRoutes(mux *http.ServeMux, up upstreams, jwtSecret string, submitLimit func(http.Handler) http.Handler) {
	admin := func(h http.Handler) http.Handler {
		return requireAuth(requireRole(h, auth.RoleAdmin), jwtSecret)
	}

	registerProxy(mux, "/api/v1/auth", up.Auth)

	mux.Handle("GET /api/v1/public/services", up.Catalog)
	mux.Handle("GET /api/v1/public/barbers", up.Catalog)
	mux.Handle("GET /api/v1/public/slots", up.Booking)
	bookings := up.Booking
	if submitLimit != nil {
		bookings = submitLimit(bookings)
	}
	mux.Handle("POST /api/v1/public/bookings", bookings)

	registerProxy(mux, "/api/v1/admin/bookings", admin(up.Booking))
	registerProxy(mux, "/api/v1/admin/services", admin(up.Catalog))
	registerProxy(mux, "/api/v1/admin/barbers", admin(up.Catalog))
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

// requireAuth verifies the bearer token and forwards the caller identity to
// upstreams. Identity headers sent by the client are always dropped.
func requireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del("X-User-Id")
		r.Header.Del("X-Role")

		token := auth.BearerToken(r)
		if token == "" {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Set("X-User-Id", claims.Subject)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role")
		if _, ok := allowed[role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
