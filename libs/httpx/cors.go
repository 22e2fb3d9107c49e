package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy describes which browser origins may call the API, typically the
// public booking page and the admin console.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type corsRules struct {
	any         bool
	origins     map[string]struct{}
	methods     string
	headers     string
	exposed     string
	credentials bool
	maxAge      string
}

func (p CORSPolicy) compile() corsRules {
	rules := corsRules{
		origins:     make(map[string]struct{}),
		methods:     strings.Join(normalizeList(p.AllowedMethods), ", "),
		headers:     strings.Join(normalizeList(p.AllowedHeaders), ", "),
		exposed:     strings.Join(normalizeList(p.ExposedHeaders), ", "),
		credentials: p.AllowCredentials,
	}
	for _, o := range normalizeList(p.AllowedOrigins) {
		if o == "*" {
			rules.any = true
			continue
		}
		rules.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		rules.maxAge = strconv.Itoa(secs)
	}
	return rules
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin. A
// wildcard policy echoes the origin when credentials are allowed.
func (c corsRules) allowOrigin(origin string) (string, bool) {
	if _, ok := c.origins[strings.ToLower(origin)]; ok {
		return origin, true
	}
	if !c.any {
		return "", false
	}
	if c.credentials {
		return origin, true
	}
	return "*", true
}

// WithCORS answers preflight requests and decorates responses for allowed
// origins. With no origins configured it does nothing.
func WithCORS(p CORSPolicy) Middleware {
	if len(normalizeList(p.AllowedOrigins)) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rules := p.compile()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			h := w.Header()
			h.Add("Vary", "Origin")

			allow, ok := rules.allowOrigin(origin)
			if origin == "" || !ok {
				if preflight && origin != "" {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", allow)
			if rules.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if rules.exposed != "" {
				h.Set("Access-Control-Expose-Headers", rules.exposed)
			}
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if rules.methods != "" {
				h.Set("Access-Control-Allow-Methods", rules.methods)
			}
			if rules.headers != "" {
				h.Set("Access-Control-Allow-Headers", rules.headers)
			}
			if rules.maxAge != "" {
				h.Set("Access-Control-Max-Age", rules.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
