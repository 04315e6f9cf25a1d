package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/server"
)

// Handler serves the audit trail API.
type Handler struct {
	log    *Log
	logger *zap.Logger
}

// NewHandler wires the audit endpoint.
func NewHandler(log *Log, logger *zap.Logger) *Handler {
	return &Handler{log: log, logger: logger}
}

// RegisterRoutes registers the audit route on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			server.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.log.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit entries", zap.Error(err))
		server.InternalError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}
