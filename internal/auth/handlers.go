package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/panoptikon-net/panoptikon/internal/server"
)

// PasswordSource provides the stored bcrypt hash of the operator password.
// An empty hash means no password has been set yet.
type PasswordSource interface {
	PasswordHash(ctx context.Context) (string, error)
	SetPasswordHash(ctx context.Context, hash string) error
}

// AuditRecorder receives operator actions for the audit trail. May be nil.
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, target, detail string)
}

// Handler serves the login, logout and WebSocket-token endpoints.
type Handler struct {
	sessions   *SessionStore
	tokens     *TokenService
	passwords  PasswordSource
	limiter    *FailLimiter
	audit      AuditRecorder
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewHandler wires the auth endpoints.
func NewHandler(sessions *SessionStore, tokens *TokenService, passwords PasswordSource, limiter *FailLimiter, audit AuditRecorder, sessionTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		tokens:     tokens,
		passwords:  passwords,
		limiter:    limiter,
		audit:      audit,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

func (h *Handler) record(ctx context.Context, actor, action, target, detail string) {
	if h.audit != nil {
		h.audit.Record(ctx, actor, action, target, detail)
	}
}

// RegisterRoutes mounts the auth endpoints on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", h.handleLogout)
	mux.HandleFunc("POST /api/v1/auth/password", h.handleSetPassword)
	mux.HandleFunc("GET /api/v1/auth/ws-token", h.handleWSToken)
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	addr := server.ClientIP(r)
	if !h.limiter.Allow(addr) {
		server.RateLimited(w, "too many failed login attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}
	if req.Password == "" {
		server.BadRequest(w, "password is required")
		return
	}

	hash, err := h.passwords.PasswordHash(r.Context())
	if err != nil {
		h.logger.Error("failed to load password hash", zap.Error(err))
		server.InternalError(w)
		return
	}
	if hash == "" {
		server.Unauthorized(w, "no operator password configured")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		h.limiter.Fail(addr)
		h.logger.Warn("failed login attempt", zap.String("remote", addr))
		server.Unauthorized(w, "invalid password")
		return
	}

	token, err := NewSessionToken()
	if err != nil {
		h.logger.Error("failed to generate session token", zap.Error(err))
		server.InternalError(w)
		return
	}
	if err := h.sessions.Create(r.Context(), token, h.sessionTTL); err != nil {
		h.logger.Error("failed to persist session", zap.Error(err))
		server.InternalError(w)
		return
	}
	h.record(r.Context(), addr, "auth.login", "", "")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(h.sessionTTL),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		server.Unauthorized(w, "missing session token")
		return
	}
	if err := h.sessions.Delete(r.Context(), token); err != nil {
		h.logger.Error("failed to delete session", zap.Error(err))
		server.InternalError(w)
		return
	}
	h.record(r.Context(), server.ClientIP(r), "auth.logout", "", "")
	w.WriteHeader(http.StatusNoContent)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

// handleSetPassword sets the operator password. Before a password exists the
// endpoint is open (first-run setup); afterwards it requires a valid session.
func (h *Handler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}
	if len(req.Password) < 8 {
		server.BadRequest(w, "password must be at least 8 characters")
		return
	}

	existing, err := h.passwords.PasswordHash(r.Context())
	if err != nil {
		h.logger.Error("failed to load password hash", zap.Error(err))
		server.InternalError(w)
		return
	}
	if existing != "" {
		ok, err := h.Authenticate(r)
		if err != nil {
			h.logger.Error("session lookup failed", zap.Error(err))
			server.InternalError(w)
			return
		}
		if !ok {
			server.Unauthorized(w, "invalid or expired session")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		server.InternalError(w)
		return
	}
	if err := h.passwords.SetPasswordHash(r.Context(), string(hash)); err != nil {
		h.logger.Error("failed to store password hash", zap.Error(err))
		server.InternalError(w)
		return
	}
	h.record(r.Context(), server.ClientIP(r), "auth.password_changed", "", "")
	w.WriteHeader(http.StatusNoContent)
}

type wsTokenResponse struct {
	Token string `json:"token"`
}

// handleWSToken exchanges a valid session for a short-lived JWT that the
// browser passes as a query parameter when opening the event WebSocket.
func (h *Handler) handleWSToken(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		server.Unauthorized(w, "missing session token")
		return
	}
	valid, err := h.sessions.Valid(r.Context(), token)
	if err != nil {
		h.logger.Error("session lookup failed", zap.Error(err))
		server.InternalError(w)
		return
	}
	if !valid {
		server.Unauthorized(w, "invalid or expired session")
		return
	}

	signed, err := h.tokens.IssueWSToken(token)
	if err != nil {
		h.logger.Error("failed to issue ws token", zap.Error(err))
		server.InternalError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wsTokenResponse{Token: signed})
}

// Authenticate reports whether the request carries a valid session token.
func (h *Handler) Authenticate(r *http.Request) (bool, error) {
	token := bearerToken(r)
	if token == "" {
		return false, nil
	}
	return h.sessions.Valid(r.Context(), token)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) > len(prefix) && v[:len(prefix)] == prefix {
		return v[len(prefix):]
	}
	return ""
}
