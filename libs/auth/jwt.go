package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	RoleAdmin = "admin"
	issuer    = "barbershop-auth"
)

// Claims are the access token claims shared by auth-service (issuer) and the
// gateway (verifier).
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds claims for subject valid for ttl from now.
func NewClaims(sub, email, role string, now time.Time, ttl time.Duration) Claims {
	return Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func SignHS256(claims Claims, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseAndVerifyHS256 verifies signature, issuer and expiry. Any failure is
// reported as ErrInvalidToken.
func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
