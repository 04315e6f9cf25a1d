package alerting

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/server"
	"github.com/panoptikon-net/panoptikon/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (m *Module) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{
		Type:       r.URL.Query().Get("type"),
		DeviceID:   r.URL.Query().Get("device_id"),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			server.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		f.Limit = n
	}

	alerts, err := m.store.List(r.Context(), f)
	if err != nil {
		m.logger.Error("failed to list alerts", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (m *Module) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := m.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "alert not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get alert", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (m *Module) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	err := m.store.MarkRead(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "alert not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to mark alert read", zap.Error(err))
		server.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ackRequest struct {
	By string `json:"by"`
}

func (m *Module) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}
	if req.By == "" {
		req.By = "admin"
	}

	id := r.PathValue("id")
	err := m.store.Acknowledge(r.Context(), id, req.By)
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "alert not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to acknowledge alert", zap.String("alert_id", id), zap.Error(err))
		server.InternalError(w)
		return
	}

	alert, err := m.store.Get(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to reload alert", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
