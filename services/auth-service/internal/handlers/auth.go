package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/md-rashed-zaman/barbershop/libs/auth"
	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	"github.com/md-rashed-zaman/barbershop/services/auth-service/internal/sessions"
	"github.com/md-rashed-zaman/barbershop/services/auth-service/internal/storage"
)

type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthHandler struct {
	users       *storage.UserRepository
	refreshRepo *sessions.RefreshRepository
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

func NewAuthHandler(users *storage.UserRepository, refreshRepo *sessions.RefreshRepository, cfg Config, logger *slog.Logger) *AuthHandler {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &AuthHandler{
		users:       users,
		refreshRepo: refreshRepo,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Routes registers the auth endpoints. login is wrapped with limit.
func (h *AuthHandler) Routes(mux *http.ServeMux, limit httpx.Middleware) {
	login := http.Handler(http.HandlerFunc(h.Login))
	if limit != nil {
		login = limit(login)
	}
	mux.Handle("POST /api/v1/auth/login", login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.Error("user lookup failed", "err", err)
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		h.logger.Warn("login rejected", "user_id", user.ID)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.writeTokens(w, r.Context(), user)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked, so each refresh token works once.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		http.Error(w, "refresh_token required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	record, err := h.refreshRepo.GetByHash(ctx, sessions.HashToken(req.RefreshToken))
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.Error("refresh token lookup failed", "err", err)
		http.Error(w, "failed to lookup refresh token", http.StatusInternalServerError)
		return
	}
	if !record.Active(h.now()) {
		http.Error(w, "refresh token expired", http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetByID(ctx, record.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			http.Error(w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.logger.Error("user lookup failed", "err", err)
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}

	revoked, err := h.refreshRepo.Revoke(ctx, record.ID)
	if err != nil {
		h.logger.Error("refresh token revoke failed", "err", err)
		http.Error(w, "failed to rotate refresh token", http.StatusInternalServerError)
		return
	}
	if !revoked {
		h.logger.Warn("refresh token reused", "user_id", user.ID)
		http.Error(w, "refresh token expired", http.StatusUnauthorized)
		return
	}

	h.writeTokens(w, ctx, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		http.Error(w, "refresh_token required", http.StatusBadRequest)
		return
	}

	record, err := h.refreshRepo.GetByHash(r.Context(), sessions.HashToken(req.RefreshToken))
	if err != nil {
		if db.IsNotFound(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Error("refresh token lookup failed", "err", err)
		http.Error(w, "failed to lookup refresh token", http.StatusInternalServerError)
		return
	}
	if record.RevokedAt == nil {
		if _, err := h.refreshRepo.Revoke(r.Context(), record.ID); err != nil {
			h.logger.Error("refresh token revoke failed", "err", err)
			http.Error(w, "failed to revoke refresh token", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ParseAndVerifyHS256(token, h.cfg.Secret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	})
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, ctx context.Context, user storage.User) {
	now := h.now()
	access, err := auth.SignHS256(auth.NewClaims(user.ID, user.Email, user.Role, now, h.cfg.AccessTTL), h.cfg.Secret)
	if err != nil {
		h.logger.Error("token signing failed", "err", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	refresh, err := newRefreshToken()
	if err != nil {
		http.Error(w, "failed to issue refresh token", http.StatusInternalServerError)
		return
	}
	if _, err := h.refreshRepo.Create(ctx, user.ID, refresh, now.Add(h.cfg.RefreshTTL)); err != nil {
		h.logger.Error("refresh token store failed", "err", err)
		http.Error(w, "failed to issue refresh token", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.cfg.AccessTTL.Seconds()),
	})
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}

// EnsureAdmin creates the admin account from email and password when no user
// holds that email yet. An existing account is left untouched.
func EnsureAdmin(ctx context.Context, users *storage.UserRepository, email, password string, logger *slog.Logger) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		logger.Warn("admin bootstrap skipped (ADMIN_EMAIL or ADMIN_PASSWORD not set)")
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	created, err := users.CreateIfAbsent(ctx, storage.User{
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	})
	if err != nil {
		return err
	}
	if created {
		logger.Info("admin account created", "email", email)
	}
	return nil
}
