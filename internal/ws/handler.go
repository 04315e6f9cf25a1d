package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/agenthub"
	"github.com/panoptikon-net/panoptikon/internal/alerting"
	"github.com/panoptikon-net/panoptikon/internal/auth"
	"github.com/panoptikon-net/panoptikon/internal/inventory"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Handler provides the UI event stream endpoint.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenService
	bus    plugin.EventBus
	logger *zap.Logger
}

// Compile-time check that Handler implements the server route interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes to the event bus.
func NewHandler(tokens *auth.TokenService, bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		tokens: tokens,
		bus:    bus,
		logger: logger,
	}
	h.subscribeToEvents()
	return h
}

// Hub exposes the hub for health reporting.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// RegisterRoutes registers the event stream route on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// handleEventStream upgrades the connection and streams catalogue events.
// Browsers cannot set headers on WebSocket opens, so auth is a short-lived
// JWT in the query string.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token parameter", http.StatusUnauthorized)
		return
	}
	if _, err := h.tokens.ValidateWSToken(token); err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin is irrelevant here: access is proven by the JWT.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		logger: h.logger,
	}
	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards bus events to connected UI clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	forward := func(topic, msgType string) {
		h.bus.Subscribe(topic, func(_ context.Context, event plugin.Event) {
			h.hub.Broadcast(Message{
				Type:      msgType,
				Timestamp: event.Timestamp,
				Data:      event.Payload,
			})
		})
	}

	forward(inventory.TopicDeviceNew, MessageDeviceNew)
	forward(inventory.TopicDeviceOnline, MessageDeviceUp)
	forward(inventory.TopicDeviceOffline, MessageDeviceDown)
	forward(inventory.TopicIPChanged, MessageIPChanged)
	forward(inventory.TopicScanCompleted, MessageScanCompleted)
	forward(agenthub.TopicAgentReport, MessageAgentReport)

	h.bus.Subscribe(alerting.TopicAlertCreated, func(_ context.Context, event plugin.Event) {
		alert, ok := event.Payload.(*models.Alert)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageAlertCreated,
			Timestamp: event.Timestamp,
			Data:      alert,
		})
	})

	h.logger.Info("subscribed to catalogue events for UI broadcasting")
}
