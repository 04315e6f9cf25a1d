// Package webhook forwards created alerts to a user-configured HTTP
// endpoint. Delivery is fire-and-forget: failures are logged, never
// retried.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/alerting"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.Plugin = (*Module)(nil)

// deliveryTimeout bounds each POST; a slow endpoint must not back up the
// alert pipeline.
const deliveryTimeout = 5 * time.Second

// URLSource supplies the current webhook URL. Empty means disabled. The
// URL is read per delivery so settings changes apply without a restart.
type URLSource interface {
	WebhookURL(ctx context.Context) (string, error)
}

// Module implements the webhook notifier plugin.
type Module struct {
	logger *zap.Logger
	urls   URLSource
	bus    plugin.EventBus
	client *http.Client

	wg sync.WaitGroup
}

// New creates the webhook plugin.
func New(urls URLSource) *Module {
	return &Module{
		urls:   urls,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "webhook",
		Version:      "0.1.0",
		Description:  "Posts created alerts to a configurable URL",
		Dependencies: []string{"alerts"},
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus
	m.logger.Info("webhook module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.bus.Subscribe(alerting.TopicAlertCreated, m.handleAlert)
	m.logger.Info("webhook module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.wg.Wait()
	m.logger.Info("webhook module stopped")
	return nil
}

// payload is the JSON body POSTed to the webhook URL.
type payload struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func (m *Module) handleAlert(ctx context.Context, event plugin.Event) {
	url, err := m.urls.WebhookURL(ctx)
	if err != nil {
		m.logger.Warn("failed to read webhook url", zap.Error(err))
		return
	}
	if url == "" {
		return
	}

	body, err := json.Marshal(payload{
		Type:      event.Topic,
		Data:      event.Payload,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
	})
	if err != nil {
		m.logger.Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.send(url, body)
	}()
}

// send runs on its own goroutine with its own deadline; the publishing
// context may already be gone by the time the POST completes.
func (m *Module) send(url string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		m.logger.Error("failed to create webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Panoptikon-Webhook/0.1")

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Warn("webhook delivery failed", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		m.logger.Warn("webhook endpoint returned error",
			zap.String("url", url), zap.Int("status_code", resp.StatusCode))
		return
	}
	m.logger.Debug("webhook delivered", zap.Int("status_code", resp.StatusCode))
}
