package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/agenthub"
	"github.com/panoptikon-net/panoptikon/internal/inventory"
	"github.com/panoptikon-net/panoptikon/internal/netflow"
	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// syncBus delivers published events to subscribers inline and records
// everything published.
type syncBus struct {
	mu        sync.Mutex
	handlers  map[string][]plugin.EventHandler
	published []plugin.Event
}

func newSyncBus() *syncBus {
	return &syncBus{handlers: make(map[string][]plugin.EventHandler)}
}

func (b *syncBus) Publish(ctx context.Context, e plugin.Event) error {
	b.PublishAsync(ctx, e)
	return nil
}

func (b *syncBus) PublishAsync(ctx context.Context, e plugin.Event) {
	b.mu.Lock()
	b.published = append(b.published, e)
	handlers := append([]plugin.EventHandler(nil), b.handlers[e.Topic]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(ctx, e)
	}
}

func (b *syncBus) Subscribe(topic string, h plugin.EventHandler) func() {
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], h)
	b.mu.Unlock()
	return func() {}
}

func (b *syncBus) SubscribeAll(plugin.EventHandler) func() { return func() {} }

func (b *syncBus) byTopic(topic string) []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []plugin.Event
	for _, e := range b.published {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fakeMutes struct{ muted map[string]bool }

func (f *fakeMutes) IsMuted(_ context.Context, id string) (bool, error) {
	return f.muted[id], nil
}

type fakeThresholds struct{ bps map[string]int64 }

func (f *fakeThresholds) BandwidthThreshold(_ context.Context, id string) (int64, error) {
	return f.bps[id], nil
}

func testAlertStore(t *testing.T) *Store {
	t.Helper()
	base, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { base.Close() })
	if err := base.Migrate(context.Background(), "alerts", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(base.DB(), base)
}

func testEngine(t *testing.T, mutes MuteChecker, thresholds ThresholdSource) (*Engine, *Store, *syncBus) {
	t.Helper()
	s := testAlertStore(t)
	bus := newSyncBus()
	e := NewEngine(s, mutes, thresholds, bus, zap.NewNop())
	e.subscribe()
	return e, s, bus
}

func publish(bus *syncBus, topic string, payload any) {
	bus.PublishAsync(context.Background(), plugin.Event{
		Topic: topic, Source: "test", Timestamp: time.Now(), Payload: payload,
	})
}

func TestEngine_NewDeviceAlert(t *testing.T) {
	_, s, bus := testEngine(t, nil, nil)

	publish(bus, inventory.TopicDeviceNew, inventory.DeviceEvent{
		DeviceID: "dev-1", MAC: "AA:BB:CC:DD:EE:FF", IP: "10.0.0.50",
	})

	alerts, err := s.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != models.AlertNewDevice {
		t.Errorf("Type = %q, want new_device", alerts[0].Type)
	}
	if alerts[0].Severity != models.SeverityInfo {
		t.Errorf("Severity = %q, want INFO", alerts[0].Severity)
	}

	created := bus.byTopic(TopicAlertCreated)
	if len(created) != 1 {
		t.Fatalf("alert_created events = %d, want 1", len(created))
	}
	if _, ok := created[0].Payload.(*models.Alert); !ok {
		t.Errorf("payload type = %T, want *models.Alert", created[0].Payload)
	}
}

func TestEngine_MutedDeviceSuppressed(t *testing.T) {
	mutes := &fakeMutes{muted: map[string]bool{"dev-muted": true}}
	_, s, bus := testEngine(t, mutes, nil)

	publish(bus, inventory.TopicDeviceOffline, inventory.DeviceEvent{
		DeviceID: "dev-muted", MAC: "AA:BB:CC:DD:EE:FF",
	})

	alerts, err := s.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("alerts = %d, want 0 (muted)", len(alerts))
	}
	if n := len(bus.byTopic(TopicAlertCreated)); n != 0 {
		t.Errorf("alert_created events = %d, want 0", n)
	}
}

func TestEngine_DeviceOfflineAlert(t *testing.T) {
	_, s, bus := testEngine(t, &fakeMutes{}, nil)

	publish(bus, inventory.TopicDeviceOffline, inventory.DeviceEvent{
		DeviceID: "dev-2", MAC: "AA:BB:CC:DD:EE:02", Hostname: "printer",
	})

	alerts, _ := s.List(context.Background(), ListFilter{})
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != models.SeverityWarning {
		t.Errorf("Severity = %q, want WARNING", alerts[0].Severity)
	}
}

func TestEngine_OnlineAlertNeedsLongOutage(t *testing.T) {
	e, s, bus := testEngine(t, nil, nil)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	blip := now.Add(-2 * time.Minute)
	publish(bus, inventory.TopicDeviceOnline, inventory.DeviceEvent{
		DeviceID: "dev-3", OfflineSince: &blip,
	})
	alerts, _ := s.List(context.Background(), ListFilter{})
	if len(alerts) != 0 {
		t.Fatalf("alerts after blip = %d, want 0", len(alerts))
	}

	outage := now.Add(-10 * time.Minute)
	publish(bus, inventory.TopicDeviceOnline, inventory.DeviceEvent{
		DeviceID: "dev-3", OfflineSince: &outage,
	})
	alerts, _ = s.List(context.Background(), ListFilter{})
	if len(alerts) != 1 {
		t.Fatalf("alerts after outage = %d, want 1", len(alerts))
	}
	if alerts[0].Type != models.AlertDeviceOnline {
		t.Errorf("Type = %q, want device_online", alerts[0].Type)
	}
	if alerts[0].Severity != models.SeverityInfo {
		t.Errorf("Severity = %q, want INFO", alerts[0].Severity)
	}
}

func TestEngine_AgentOfflineAlert(t *testing.T) {
	_, s, bus := testEngine(t, nil, nil)

	publish(bus, agenthub.TopicAgentOffline, agenthub.OfflineEvent{
		AgentID: "ag-1", Name: "office-server", LastReportAt: time.Now().Add(-5 * time.Minute),
	})

	alerts, _ := s.List(context.Background(), ListFilter{})
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Type != models.AlertAgentOffline {
		t.Errorf("Type = %q, want agent_offline", alerts[0].Type)
	}
	if alerts[0].AgentID != "ag-1" {
		t.Errorf("AgentID = %q, want ag-1", alerts[0].AgentID)
	}
}

func TestEngine_HighBandwidthThreeWindows(t *testing.T) {
	thresholds := &fakeThresholds{bps: map[string]int64{"dev-hot": 1_000_000}}
	_, s, bus := testEngine(t, nil, thresholds)

	hot := []models.TrafficSample{{DeviceID: "dev-hot", RxBps: 900_000, TxBps: 900_000, Source: "netflow"}}

	publish(bus, netflow.TopicSamplesFlushed, hot)
	publish(bus, netflow.TopicSamplesFlushed, hot)
	alerts, _ := s.List(context.Background(), ListFilter{})
	if len(alerts) != 0 {
		t.Fatalf("alerts after 2 windows = %d, want 0", len(alerts))
	}

	publish(bus, netflow.TopicSamplesFlushed, hot)
	alerts, _ = s.List(context.Background(), ListFilter{})
	if len(alerts) != 1 {
		t.Fatalf("alerts after 3 windows = %d, want 1", len(alerts))
	}
	if alerts[0].Type != models.AlertHighBandwidth {
		t.Errorf("Type = %q, want high_bandwidth", alerts[0].Type)
	}

	// Re-arm: the next two hot windows alone must not re-alert.
	publish(bus, netflow.TopicSamplesFlushed, hot)
	publish(bus, netflow.TopicSamplesFlushed, hot)
	alerts, _ = s.List(context.Background(), ListFilter{})
	if len(alerts) != 1 {
		t.Errorf("alerts after re-arm = %d, want still 1", len(alerts))
	}
}

func TestBandwidthTracker_QuietWindowResets(t *testing.T) {
	thresholds := &fakeThresholds{bps: map[string]int64{"d": 1000}}
	tr := newBandwidthTracker(thresholds)
	ctx := context.Background()

	hot := []models.TrafficSample{{DeviceID: "d", RxBps: 2000}}
	quiet := []models.TrafficSample{{DeviceID: "d", RxBps: 100}}

	tr.Observe(ctx, hot)
	tr.Observe(ctx, hot)
	tr.Observe(ctx, quiet)
	if trips := tr.Observe(ctx, hot); len(trips) != 0 {
		t.Errorf("trips = %d, want 0 after streak reset", len(trips))
	}
}

func TestBandwidthTracker_ZeroThresholdDisabled(t *testing.T) {
	tr := newBandwidthTracker(&fakeThresholds{bps: map[string]int64{}})
	ctx := context.Background()

	hot := []models.TrafficSample{{DeviceID: "d", RxBps: 1 << 40}}
	for i := 0; i < 5; i++ {
		if trips := tr.Observe(ctx, hot); len(trips) != 0 {
			t.Fatalf("trips = %d, want 0 with no threshold", len(trips))
		}
	}
}

func TestSeverityFor_UnknownType(t *testing.T) {
	if got := severityFor("something_else"); got != models.SeverityWarning {
		t.Errorf("severityFor(unknown) = %q, want WARNING", got)
	}
}
