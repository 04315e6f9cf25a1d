package agenthub

import (
	"sync"
	"time"
)

// onlineWindow is how recently an agent must have reported to count as
// online.
const onlineWindow = 2 * time.Minute

// SessionHub tracks which agents currently hold a live connection. A new
// connection for an agent displaces the old one.
type SessionHub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionHub creates an empty hub.
func NewSessionHub() *SessionHub {
	return &SessionHub{sessions: make(map[string]*Session)}
}

// Add registers a session, returning the displaced session if the agent
// was already connected.
func (h *SessionHub) Add(s *Session) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.sessions[s.agent.ID]
	h.sessions[s.agent.ID] = s
	return old
}

// Remove drops a session, but only if it is still the current one for its
// agent; a displaced session must not evict its replacement.
func (h *SessionHub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[s.agent.ID] == s {
		delete(h.sessions, s.agent.ID)
	}
}

// Connected reports whether the agent has a live session.
func (h *SessionHub) Connected(agentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[agentID]
	return ok
}

// Count returns the number of live sessions.
func (h *SessionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// AgentOnline reports whether an agent is considered online: its last
// report landed within the online window. Connection state alone is not
// enough, a wedged socket can linger long after reports stop.
func AgentOnline(lastReportAt *time.Time, now time.Time) bool {
	if lastReportAt == nil {
		return false
	}
	return now.Sub(*lastReportAt) < onlineWindow
}
