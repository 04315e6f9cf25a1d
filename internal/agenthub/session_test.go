package agenthub

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
	"github.com/panoptikon-net/panoptikon/pkg/plugin"
)

// captureBus records published events synchronously.
type captureBus struct {
	mu     sync.Mutex
	events []plugin.Event
}

func (b *captureBus) Publish(_ context.Context, e plugin.Event) error {
	b.record(e)
	return nil
}

func (b *captureBus) PublishAsync(_ context.Context, e plugin.Event) { b.record(e) }

func (b *captureBus) Subscribe(string, plugin.EventHandler) func() { return func() {} }
func (b *captureBus) SubscribeAll(plugin.EventHandler) func()      { return func() {} }

func (b *captureBus) record(e plugin.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *captureBus) byTopic(topic string) []plugin.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []plugin.Event
	for _, e := range b.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// fakeDevices resolves lookups from fixed maps.
type fakeDevices struct {
	byMAC  map[string]string
	byHost map[string]string
}

func (f *fakeDevices) GetDeviceByMAC(_ context.Context, mac string) (*models.Device, error) {
	if id, ok := f.byMAC[mac]; ok {
		return &models.Device{ID: id}, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeDevices) GetDeviceByHostname(_ context.Context, hostname string) (*models.Device, error) {
	if id, ok := f.byHost[hostname]; ok {
		return &models.Device{ID: id}, nil
	}
	return nil, store.ErrNotFound
}

func testSession(t *testing.T, devices DeviceLookup, bus plugin.EventBus) (*Session, *Store) {
	t.Helper()
	s := testAgentStore(t)
	agent, _, err := s.CreateAgent(context.Background(), "test-agent", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return &Session{
		agent:       agent,
		store:       s,
		devices:     devices,
		bus:         bus,
		logger:      zap.NewNop(),
		readTimeout: time.Minute,
		now:         func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) },
	}, s
}

func sampleReport() *models.Report {
	return &models.Report{
		AgentID:  "ignored-by-server",
		Hostname: "office-pc",
		OS:       models.OSInfo{Name: "Linux", Version: "6.8"},
		CPU:      models.CPUInfo{Count: 8, UsagePercent: 37.5},
		Memory:   models.MemoryInfo{TotalBytes: 16 << 30, UsedBytes: 8 << 30},
		NetworkInterfaces: []models.InterfaceInfo{
			{Name: "eth0", MAC: "aa:bb:cc:dd:ee:ff", State: "up"},
		},
	}
}

func TestHandleReport_StoresServerTimestamp(t *testing.T) {
	bus := &captureBus{}
	sess, s := testSession(t, nil, bus)
	ctx := context.Background()

	rep := sampleReport()
	// Client-supplied timestamp must be ignored.
	rep.Timestamp = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := sess.handleReport(ctx, rep); err != nil {
		t.Fatalf("handleReport: %v", err)
	}

	stored, err := s.LatestReport(ctx, sess.agent.ID)
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	want := sess.now()
	if !stored.ReportedAt.Equal(want) {
		t.Errorf("ReportedAt = %v, want %v (server clock)", stored.ReportedAt, want)
	}
	if stored.Hostname != "office-pc" {
		t.Errorf("Hostname = %q, want office-pc", stored.Hostname)
	}

	events := bus.byTopic(TopicAgentReport)
	if len(events) != 1 {
		t.Fatalf("report events = %d, want 1", len(events))
	}
	payload, ok := events[0].Payload.(ReportEvent)
	if !ok {
		t.Fatalf("payload type = %T, want ReportEvent", events[0].Payload)
	}
	if payload.CPUPercent != 37.5 {
		t.Errorf("CPUPercent = %v, want 37.5", payload.CPUPercent)
	}
}

func TestHandleReport_LinksDeviceByMAC(t *testing.T) {
	devices := &fakeDevices{
		byMAC:  map[string]string{"AA:BB:CC:DD:EE:FF": "dev-mac"},
		byHost: map[string]string{"office-pc": "dev-host"},
	}
	sess, s := testSession(t, devices, nil)
	ctx := context.Background()

	if err := sess.handleReport(ctx, sampleReport()); err != nil {
		t.Fatalf("handleReport: %v", err)
	}

	got, err := s.GetAgent(ctx, sess.agent.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	// MAC match wins over hostname match.
	if got.DeviceID != "dev-mac" {
		t.Errorf("DeviceID = %q, want dev-mac", got.DeviceID)
	}
}

func TestHandleReport_LinksDeviceByHostnameFallback(t *testing.T) {
	devices := &fakeDevices{
		byMAC:  map[string]string{},
		byHost: map[string]string{"office-pc": "dev-host"},
	}
	sess, s := testSession(t, devices, nil)
	ctx := context.Background()

	if err := sess.handleReport(ctx, sampleReport()); err != nil {
		t.Fatalf("handleReport: %v", err)
	}

	got, err := s.GetAgent(ctx, sess.agent.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.DeviceID != "dev-host" {
		t.Errorf("DeviceID = %q, want dev-host", got.DeviceID)
	}
}

func TestHandleReport_KeepsExistingLink(t *testing.T) {
	devices := &fakeDevices{byMAC: map[string]string{"AA:BB:CC:DD:EE:FF": "dev-other"}}
	sess, s := testSession(t, devices, nil)
	sess.agent.DeviceID = "dev-manual"
	ctx := context.Background()

	if err := sess.handleReport(ctx, sampleReport()); err != nil {
		t.Fatalf("handleReport: %v", err)
	}

	got, err := s.GetAgent(ctx, sess.agent.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.DeviceID != "" {
		// The agent row was created unlinked and LinkDevice must not
		// have been called; the in-memory link came from elsewhere.
		t.Errorf("DeviceID = %q, want unchanged empty row", got.DeviceID)
	}
}

func TestAgentOnline(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	if AgentOnline(nil, now) {
		t.Error("nil last report counted as online")
	}
	recent := now.Add(-90 * time.Second)
	if !AgentOnline(&recent, now) {
		t.Error("report 90s ago counted as offline")
	}
	stale := now.Add(-3 * time.Minute)
	if AgentOnline(&stale, now) {
		t.Error("report 3m ago counted as online")
	}
}

func TestSessionHub_Displacement(t *testing.T) {
	hub := NewSessionHub()
	agent := &models.Agent{ID: "a1"}

	first := &Session{agent: agent}
	second := &Session{agent: agent}

	if old := hub.Add(first); old != nil {
		t.Errorf("first Add displaced %v, want nil", old)
	}
	if old := hub.Add(second); old != first {
		t.Error("second Add did not displace first session")
	}

	// The displaced session's removal must not evict its replacement.
	hub.Remove(first)
	if !hub.Connected("a1") {
		t.Error("replacement session evicted by stale Remove")
	}
	hub.Remove(second)
	if hub.Connected("a1") {
		t.Error("session still connected after Remove")
	}
}

func TestLiveness_OfflineFiresOncePerTransition(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	agent, _, err := s.CreateAgent(ctx, "flappy", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rep := &models.AgentReport{AgentID: agent.ID, ReportedAt: now, Disks: "[]", Interfaces: "[]"}
	if err := s.InsertReport(ctx, rep); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	bus := &captureBus{}
	l := newLiveness(s, bus, zap.NewNop())
	l.now = func() time.Time { return now }

	// Fresh report: online, nothing published.
	l.sweep(ctx)
	if n := len(bus.byTopic(TopicAgentOffline)); n != 0 {
		t.Fatalf("offline events = %d, want 0", n)
	}

	// Past the window: one offline event.
	l.now = func() time.Time { return now.Add(5 * time.Minute) }
	l.sweep(ctx)
	l.sweep(ctx)
	events := bus.byTopic(TopicAgentOffline)
	if len(events) != 1 {
		t.Fatalf("offline events = %d, want 1 (once per transition)", len(events))
	}
	payload, ok := events[0].Payload.(OfflineEvent)
	if !ok {
		t.Fatalf("payload type = %T, want OfflineEvent", events[0].Payload)
	}
	if payload.AgentID != agent.ID {
		t.Errorf("AgentID = %q, want %q", payload.AgentID, agent.ID)
	}

	// Back online, then offline again: a second event.
	rep2 := &models.AgentReport{AgentID: agent.ID, ReportedAt: now.Add(6 * time.Minute), Disks: "[]", Interfaces: "[]"}
	if err := s.InsertReport(ctx, rep2); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	l.now = func() time.Time { return now.Add(7 * time.Minute) }
	l.sweep(ctx)
	l.now = func() time.Time { return now.Add(20 * time.Minute) }
	l.sweep(ctx)
	if n := len(bus.byTopic(TopicAgentOffline)); n != 2 {
		t.Errorf("offline events = %d, want 2 after re-arm", n)
	}
}
