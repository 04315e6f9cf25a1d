package agenthub

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

func testAgentStore(t *testing.T) *Store {
	t.Helper()
	base, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { base.Close() })

	if err := base.Migrate(context.Background(), "agents", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(base.DB(), base)
}

func TestCreateAgent_KeyRoundTrip(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	agent, key, err := s.CreateAgent(ctx, "office-server", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if !strings.HasPrefix(key, "pan_") {
		t.Errorf("key = %q, want pan_ prefix", key)
	}
	if agent.APIKeyHash == key {
		t.Error("stored hash equals plaintext key")
	}

	found, err := s.FindByAPIKey(ctx, key)
	if err != nil {
		t.Fatalf("FindByAPIKey: %v", err)
	}
	if found.ID != agent.ID {
		t.Errorf("found ID = %q, want %q", found.ID, agent.ID)
	}
}

func TestFindByAPIKey_Unknown(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	if _, _, err := s.CreateAgent(ctx, "a", ""); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if _, err := s.FindByAPIKey(ctx, "pan_not_a_real_key"); err != ErrBadAPIKey {
		t.Errorf("err = %v, want ErrBadAPIKey", err)
	}
}

func TestInsertReport_BumpsLastReportAt(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	agent, _, err := s.CreateAgent(ctx, "nas", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	rep := &models.AgentReport{
		AgentID:    agent.ID,
		ReportedAt: at,
		Hostname:   "nas.local",
		OSName:     "Linux",
		CPUPercent: 12.5,
		MemUsed:    4 << 30,
		MemTotal:   16 << 30,
		Disks:      "[]",
		Interfaces: "[]",
	}
	if err := s.InsertReport(ctx, rep); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	got, err := s.GetAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.LastReportAt == nil || !got.LastReportAt.Equal(at) {
		t.Errorf("LastReportAt = %v, want %v", got.LastReportAt, at)
	}

	latest, err := s.LatestReport(ctx, agent.ID)
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if latest.CPUPercent != 12.5 {
		t.Errorf("CPUPercent = %v, want 12.5", latest.CPUPercent)
	}
}

func TestListReports_WindowFilter(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	agent, _, err := s.CreateAgent(ctx, "pi", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	base := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-48 * time.Hour, -2 * time.Hour, -time.Hour} {
		rep := &models.AgentReport{
			AgentID: agent.ID, ReportedAt: base.Add(offset),
			Disks: "[]", Interfaces: "[]",
		}
		if err := s.InsertReport(ctx, rep); err != nil {
			t.Fatalf("InsertReport: %v", err)
		}
	}

	reports, err := s.ListReports(ctx, agent.ID, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	if !reports[0].ReportedAt.Before(reports[1].ReportedAt) {
		t.Error("reports not in ascending order")
	}
}

func TestDeleteAgent_CascadesReports(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	agent, _, err := s.CreateAgent(ctx, "laptop", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	rep := &models.AgentReport{
		AgentID: agent.ID, ReportedAt: time.Now().UTC(),
		Disks: "[]", Interfaces: "[]",
	}
	if err := s.InsertReport(ctx, rep); err != nil {
		t.Fatalf("InsertReport: %v", err)
	}

	if err := s.DeleteAgent(ctx, agent.ID); err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}
	if _, err := s.GetAgent(ctx, agent.ID); err != store.ErrNotFound {
		t.Errorf("GetAgent err = %v, want ErrNotFound", err)
	}
	if _, err := s.LatestReport(ctx, agent.ID); err != store.ErrNotFound {
		t.Errorf("LatestReport err = %v, want ErrNotFound", err)
	}
}

func TestLinkDevice_OnlyWhenUnlinked(t *testing.T) {
	s := testAgentStore(t)
	ctx := context.Background()

	agent, _, err := s.CreateAgent(ctx, "x", "")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	if err := s.LinkDevice(ctx, agent.ID, "dev-1"); err != nil {
		t.Fatalf("LinkDevice: %v", err)
	}
	if err := s.LinkDevice(ctx, agent.ID, "dev-2"); err != nil {
		t.Fatalf("LinkDevice: %v", err)
	}

	got, err := s.GetAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1 (existing link kept)", got.DeviceID)
	}
}
