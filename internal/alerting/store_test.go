package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/panoptikon-net/panoptikon/internal/store"
	"github.com/panoptikon-net/panoptikon/pkg/models"
)

func insertTestAlert(t *testing.T, s *Store, alertType string, createdAt time.Time) *models.Alert {
	t.Helper()
	a := &models.Alert{
		Type:      alertType,
		Severity:  severityFor(alertType),
		Message:   "test",
		CreatedAt: createdAt,
	}
	if err := s.Insert(context.Background(), a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return a
}

func TestAcknowledge_ImpliesRead(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()

	a := insertTestAlert(t, s, models.AlertDeviceOffline, time.Now().UTC())
	if err := s.Acknowledge(ctx, a.ID, "admin"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AcknowledgedAt == nil {
		t.Fatal("AcknowledgedAt = nil, want set")
	}
	if !got.IsRead {
		t.Error("IsRead = false, want true (ack implies read)")
	}
	if got.AcknowledgedBy != "admin" {
		t.Errorf("AcknowledgedBy = %q, want admin", got.AcknowledgedBy)
	}
}

func TestAcknowledge_NotFound(t *testing.T) {
	s := testAlertStore(t)
	if err := s.Acknowledge(context.Background(), "missing", "admin"); err != store.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	insertTestAlert(t, s, models.AlertNewDevice, now.Add(-2*time.Hour))
	offline := insertTestAlert(t, s, models.AlertDeviceOffline, now.Add(-time.Hour))
	insertTestAlert(t, s, models.AlertDeviceOffline, now)

	if err := s.MarkRead(ctx, offline.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	byType, err := s.List(ctx, ListFilter{Type: models.AlertDeviceOffline})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("type filter = %d alerts, want 2", len(byType))
	}

	unread, err := s.List(ctx, ListFilter{UnreadOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread) != 2 {
		t.Errorf("unread filter = %d alerts, want 2", len(unread))
	}

	all, err := s.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d alerts, want 3", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Error("alerts not newest first")
	}
}

func TestDeleteAcknowledgedBefore_SparesUnacked(t *testing.T) {
	s := testAlertStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	acked := insertTestAlert(t, s, models.AlertDeviceOffline, old)
	insertTestAlert(t, s, models.AlertDeviceOffline, old) // never acknowledged

	if err := s.Acknowledge(ctx, acked.ID, "admin"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	n, err := s.DeleteAcknowledgedBefore(ctx, time.Now().UTC().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteAcknowledgedBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	remaining, _ := s.List(ctx, ListFilter{})
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
	if remaining[0].AcknowledgedAt != nil {
		t.Error("survivor is acknowledged, want the unacknowledged alert kept")
	}
}
