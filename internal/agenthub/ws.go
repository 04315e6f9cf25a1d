package agenthub

import (
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/server"
)

// handleAgentWS upgrades an agent connection. Agents are programs, not
// browsers, so the API key travels in a standard Authorization header and
// is checked before the upgrade completes.
func (m *Module) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	addr := server.ClientIP(r)
	if m.limiter != nil && !m.limiter.Allow(addr) {
		server.RateLimited(w, "too many failed authentication attempts")
		return
	}

	key := bearerToken(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		m.logger.Debug("agent websocket accept failed", zap.Error(err))
		return
	}

	// The close code is the same whether the key is missing or wrong, so
	// a probing client learns nothing about registered agents.
	if key == "" {
		m.authFailed(addr)
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}
	agent, err := m.store.FindByAPIKey(r.Context(), key)
	if err != nil {
		if err != ErrBadAPIKey {
			m.logger.Error("api key lookup failed", zap.Error(err))
		}
		m.authFailed(addr)
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	session := &Session{
		agent:       agent,
		conn:        conn,
		store:       m.store,
		devices:     m.devices,
		bus:         m.bus,
		logger:      m.logger.Named("session"),
		readTimeout: 3 * m.cfg.ReportInterval,
		now:         time.Now,
	}

	if old := m.hub.Add(session); old != nil {
		old.conn.Close(websocket.StatusPolicyViolation, "superseded by new connection")
	}
	m.logger.Info("agent connected",
		zap.String("agent_id", agent.ID), zap.String("name", agent.Name))

	session.run(r.Context())

	m.hub.Remove(session)
	conn.Close(websocket.StatusNormalClosure, "")
	m.logger.Info("agent disconnected", zap.String("agent_id", agent.ID))
}

func (m *Module) authFailed(addr string) {
	if m.limiter != nil {
		m.limiter.Fail(addr)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
