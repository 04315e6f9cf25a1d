package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/server"
)

// AuditRecorder receives operator actions for the audit trail. May be nil.
type AuditRecorder interface {
	Record(ctx context.Context, actor, action, target, detail string)
}

// Handler serves the settings API.
type Handler struct {
	store  *Store
	audit  AuditRecorder
	logger *zap.Logger
}

// NewHandler wires the settings endpoints.
func NewHandler(store *Store, audit AuditRecorder, logger *zap.Logger) *Handler {
	return &Handler{store: store, audit: audit, logger: logger}
}

func (h *Handler) record(r *http.Request, action, target, detail string) {
	if h.audit != nil {
		h.audit.Record(r.Context(), server.ClientIP(r), action, target, detail)
	}
}

// RegisterRoutes registers settings routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/settings", h.handleList)
	mux.HandleFunc("PUT /api/v1/settings/{key}", h.handleSet)
	mux.HandleFunc("DELETE /api/v1/settings/{key}", h.handleDelete)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// protectedKey rejects keys that must only change through their dedicated
// endpoints (the password has its own flow in the auth handler).
func protectedKey(key string) bool {
	return key == KeyPasswordHash || key == KeyLastVacuumAt
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.All(r.Context())
	if err != nil {
		h.logger.Error("failed to list settings", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

type setRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		server.BadRequest(w, "key is required")
		return
	}
	if protectedKey(key) {
		server.BadRequest(w, "key is managed by the system")
		return
	}

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}

	if err := h.store.Set(r.Context(), key, req.Value); err != nil {
		h.logger.Error("failed to set setting", zap.String("key", key), zap.Error(err))
		server.InternalError(w)
		return
	}
	h.record(r, "settings.set", key, req.Value)
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if protectedKey(key) {
		server.BadRequest(w, "key is managed by the system")
		return
	}
	if err := h.store.Delete(r.Context(), key); err != nil {
		h.logger.Error("failed to delete setting", zap.String("key", key), zap.Error(err))
		server.InternalError(w)
		return
	}
	h.record(r, "settings.delete", key, "")
	w.WriteHeader(http.StatusNoContent)
}
