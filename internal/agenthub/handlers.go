package agenthub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/server"
	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// agentView decorates an agent with its computed online state.
type agentView struct {
	*models.Agent
	Online bool `json:"online"`
}

func (m *Module) agentView(a *models.Agent) agentView {
	return agentView{Agent: a, Online: AgentOnline(a.LastReportAt, time.Now())}
}

func (m *Module) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := m.store.ListAgents(r.Context())
	if err != nil {
		m.logger.Error("failed to list agents", zap.Error(err))
		server.InternalError(w)
		return
	}
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, m.agentView(a))
	}
	writeJSON(w, http.StatusOK, views)
}

type createAgentRequest struct {
	Name     string `json:"name"`
	DeviceID string `json:"device_id"`
}

// handleCreateAgent registers an agent. The response carries the plaintext
// API key; it is never retrievable again.
func (m *Module) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		server.BadRequest(w, "name is required")
		return
	}

	agent, key, err := m.store.CreateAgent(r.Context(), req.Name, req.DeviceID)
	if err != nil {
		m.logger.Error("failed to create agent", zap.Error(err))
		server.InternalError(w)
		return
	}
	m.logger.Info("agent registered", zap.String("agent_id", agent.ID), zap.String("name", agent.Name))

	writeJSON(w, http.StatusCreated, map[string]any{
		"agent":   agent,
		"api_key": key,
	})
}

func (m *Module) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := m.store.GetAgent(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to get agent", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, m.agentView(agent))
}

type updateAgentRequest struct {
	Name     *string `json:"name"`
	DeviceID *string `json:"device_id"`
}

func (m *Module) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req updateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body")
		return
	}

	id := r.PathValue("id")
	err := m.store.UpdateAgent(r.Context(), id, req.Name, req.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to update agent", zap.String("agent_id", id), zap.Error(err))
		server.InternalError(w)
		return
	}

	agent, err := m.store.GetAgent(r.Context(), id)
	if err != nil {
		m.logger.Error("failed to reload agent", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, m.agentView(agent))
}

func (m *Module) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	err := m.store.DeleteAgent(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "agent not found")
		return
	}
	if err != nil {
		m.logger.Error("failed to delete agent", zap.Error(err))
		server.InternalError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	rep, err := m.store.LatestReport(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		server.NotFound(w, "no reports for agent")
		return
	}
	if err != nil {
		m.logger.Error("failed to load latest report", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (m *Module) handleListReports(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 168 {
			server.BadRequest(w, "hours must be between 1 and 168")
			return
		}
		hours = n
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	reports, err := m.store.ListReports(r.Context(), r.PathValue("id"), since)
	if err != nil {
		m.logger.Error("failed to list reports", zap.Error(err))
		server.InternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}
