package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/panoptikon-net/panoptikon/internal/enrich"
	"github.com/panoptikon-net/panoptikon/internal/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	base, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { base.Close() })

	if err := base.Migrate(context.Background(), "inventory", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(base.DB(), base)
}

func TestUpsertSighting_FirstSighting(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sg, err := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")
	if err != nil {
		t.Fatalf("UpsertSighting: %v", err)
	}
	if !sg.WasNew {
		t.Error("WasNew = false, want true")
	}
	if sg.IPChanged {
		t.Error("IPChanged = true, want false")
	}

	d, err := s.GetDevice(ctx, sg.DeviceID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if !d.IsOnline {
		t.Error("IsOnline = false, want true")
	}
	if d.CurrentIP != "10.0.0.42" {
		t.Errorf("CurrentIP = %q, want %q", d.CurrentIP, "10.0.0.42")
	}

	ips, err := s.ListIPs(ctx, sg.DeviceID)
	if err != nil {
		t.Fatalf("ListIPs: %v", err)
	}
	if len(ips) != 1 || !ips[0].IsCurrent {
		t.Errorf("ips = %+v, want one current row", ips)
	}
}

func TestUpsertSighting_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")
	if err != nil {
		t.Fatalf("first sighting: %v", err)
	}
	second, err := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")
	if err != nil {
		t.Fatalf("second sighting: %v", err)
	}
	if second.WasNew || second.WasOffline || second.IPChanged {
		t.Errorf("second sighting = %+v, want no transitions", second)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("DeviceID changed: %q != %q", second.DeviceID, first.DeviceID)
	}

	ips, _ := s.ListIPs(ctx, first.DeviceID)
	if len(ips) != 1 {
		t.Errorf("len(ips) = %d, want 1 (no duplicate row)", len(ips))
	}
}

func TestUpsertSighting_IPChange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.10")
	if err != nil {
		t.Fatalf("first sighting: %v", err)
	}
	second, err := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.11")
	if err != nil {
		t.Fatalf("second sighting: %v", err)
	}
	if !second.IPChanged {
		t.Error("IPChanged = false, want true")
	}
	if second.OldIP != "10.0.0.10" {
		t.Errorf("OldIP = %q, want %q", second.OldIP, "10.0.0.10")
	}
	if second.WasNew {
		t.Error("WasNew = true on second tick, want false")
	}

	ips, err := s.ListIPs(ctx, first.DeviceID)
	if err != nil {
		t.Fatalf("ListIPs: %v", err)
	}
	if len(ips) != 2 {
		t.Fatalf("len(ips) = %d, want 2", len(ips))
	}
	current := 0
	for _, ip := range ips {
		if ip.IsCurrent {
			current++
			if ip.IP != "10.0.0.11" {
				t.Errorf("current ip = %q, want %q", ip.IP, "10.0.0.11")
			}
		}
	}
	if current != 1 {
		t.Errorf("current rows = %d, want exactly 1", current)
	}
}

func TestUpsertSighting_IPMigratesAcrossDevices(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old, err := s.UpsertSighting(ctx, "AA:AA:AA:AA:AA:01", "10.0.0.50")
	if err != nil {
		t.Fatalf("old owner sighting: %v", err)
	}
	// DHCP hands the same address to a different device.
	neu, err := s.UpsertSighting(ctx, "BB:BB:BB:BB:BB:02", "10.0.0.50")
	if err != nil {
		t.Fatalf("new owner sighting: %v", err)
	}

	id, err := s.DeviceIDByIP(ctx, "10.0.0.50")
	if err != nil {
		t.Fatalf("DeviceIDByIP: %v", err)
	}
	if id != neu.DeviceID {
		t.Errorf("ip owner = %q, want new device %q", id, neu.DeviceID)
	}

	ips, _ := s.ListIPs(ctx, old.DeviceID)
	for _, ip := range ips {
		if ip.IP == "10.0.0.50" && ip.IsCurrent {
			t.Error("old owner still has the ip marked current")
		}
	}
}

func TestMarkStaleOffline(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sg, err := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")
	if err != nil {
		t.Fatalf("UpsertSighting: %v", err)
	}

	// Backdate last_seen_at past the grace window.
	past := time.Now().UTC().Add(-400 * time.Second)
	if _, err := s.db.Exec("UPDATE devices SET last_seen_at = ? WHERE id = ?", past, sg.DeviceID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	stale, err := s.MarkStaleOffline(ctx, 300*time.Second)
	if err != nil {
		t.Fatalf("MarkStaleOffline: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != sg.DeviceID {
		t.Fatalf("stale = %+v, want the backdated device", stale)
	}

	d, _ := s.GetDevice(ctx, sg.DeviceID)
	if d.IsOnline {
		t.Error("IsOnline = true after stale sweep, want false")
	}

	// A second sweep must not report it again.
	stale, err = s.MarkStaleOffline(ctx, 300*time.Second)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("second sweep returned %d devices, want 0", len(stale))
	}
}

func TestApplyEnrichment_CorrectedLock(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sg, _ := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")

	osFamily := "macOS"
	if err := s.UpdateDevice(ctx, sg.DeviceID, DeviceUpdate{OSFamily: &osFamily}); err != nil {
		t.Fatalf("UpdateDevice: %v", err)
	}

	err := s.ApplyEnrichment(ctx, sg.DeviceID, enrich.Result{
		OSFamily: "Windows", DeviceType: enrich.TypeDesktop, Source: enrich.SourceTTL,
	})
	if err != nil {
		t.Fatalf("ApplyEnrichment: %v", err)
	}

	d, _ := s.GetDevice(ctx, sg.DeviceID)
	if d.OSFamily != "macOS" {
		t.Errorf("OSFamily = %q, want user value %q preserved", d.OSFamily, "macOS")
	}
	if d.DeviceType != "" {
		t.Errorf("DeviceType = %q, want untouched", d.DeviceType)
	}
	if !d.EnrichmentCorrected {
		t.Error("EnrichmentCorrected = false after manual edit")
	}
}

func TestApplyEnrichment_PartialUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sg, _ := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")

	if err := s.ApplyEnrichment(ctx, sg.DeviceID, enrich.Result{
		DeviceType: enrich.TypePrinter, Source: enrich.SourceMDNS,
	}); err != nil {
		t.Fatalf("ApplyEnrichment: %v", err)
	}

	d, _ := s.GetDevice(ctx, sg.DeviceID)
	if d.DeviceType != enrich.TypePrinter {
		t.Errorf("DeviceType = %q, want %q", d.DeviceType, enrich.TypePrinter)
	}
	if d.OSFamily != "" {
		t.Errorf("OSFamily = %q, want empty (result carried no value)", d.OSFamily)
	}
	if d.EnrichmentSource != enrich.SourceMDNS {
		t.Errorf("EnrichmentSource = %q, want %q", d.EnrichmentSource, enrich.SourceMDNS)
	}
}

func TestIsMuted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sg, _ := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")

	muted, err := s.IsMuted(ctx, sg.DeviceID)
	if err != nil {
		t.Fatalf("IsMuted: %v", err)
	}
	if muted {
		t.Error("fresh device reported muted")
	}

	until := time.Now().UTC().Add(time.Hour)
	if err := s.SetMute(ctx, sg.DeviceID, &until); err != nil {
		t.Fatalf("SetMute: %v", err)
	}
	muted, _ = s.IsMuted(ctx, sg.DeviceID)
	if !muted {
		t.Error("device not muted after SetMute")
	}

	if err := s.SetMute(ctx, sg.DeviceID, nil); err != nil {
		t.Fatalf("clear mute: %v", err)
	}
	muted, _ = s.IsMuted(ctx, sg.DeviceID)
	if muted {
		t.Error("device still muted after clear")
	}
}

func TestRecordAndListEvents(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sg, _ := s.UpsertSighting(ctx, "AA:BB:CC:DD:EE:FF", "10.0.0.42")

	for _, et := range []string{"new", "offline", "online"} {
		if err := s.RecordEvent(ctx, sg.DeviceID, et, ""); err != nil {
			t.Fatalf("RecordEvent(%s): %v", et, err)
		}
	}

	events, err := s.ListEvents(ctx, sg.DeviceID, 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("len(events) = %d, want 3", len(events))
	}
}
