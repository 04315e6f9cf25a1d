package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/alerting"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

type staticURL string

func (u staticURL) WebhookURL(context.Context) (string, error) {
	return string(u), nil
}

func testModule(url string) *Module {
	m := New(staticURL(url))
	m.logger = zap.NewNop()
	return m
}

func TestHandleAlert_Delivers(t *testing.T) {
	received := make(chan payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var p payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := testModule(srv.URL)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.handleAlert(context.Background(), plugin.Event{
		Topic:     alerting.TopicAlertCreated,
		Timestamp: now,
		Payload:   &models.Alert{Type: models.AlertDeviceOffline},
	})
	m.wg.Wait()

	select {
	case p := <-received:
		if p.Type != alerting.TopicAlertCreated {
			t.Errorf("Type = %q, want %q", p.Type, alerting.TopicAlertCreated)
		}
		if p.Timestamp != "2026-08-25T12:00:00Z" {
			t.Errorf("Timestamp = %q, want RFC3339 UTC", p.Timestamp)
		}
	default:
		t.Fatal("webhook not delivered")
	}
}

func TestHandleAlert_EmptyURLDisabled(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	m := testModule("")
	m.handleAlert(context.Background(), plugin.Event{Topic: alerting.TopicAlertCreated})
	m.wg.Wait()

	if called {
		t.Error("webhook called with empty URL configured")
	}
}

func TestHandleAlert_EndpointErrorIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := testModule(srv.URL)
	// Must not panic or block; failures are logged and dropped.
	m.handleAlert(context.Background(), plugin.Event{
		Topic:     alerting.TopicAlertCreated,
		Timestamp: time.Now(),
		Payload:   &models.Alert{Type: models.AlertNewDevice},
	})
	m.wg.Wait()
}
