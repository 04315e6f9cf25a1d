package netflow

import (
	"testing"
	"time"
)

func TestAggregator_ScenarioConversion(t *testing.T) {
	agg := NewAggregator()

	// One device: 60000 octets out, 120000 octets in, over one window.
	agg.AddTx("dev-1", 60000)
	agg.AddRx("dev-1", 120000)

	samples := agg.Flush(time.Now())
	if len(samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1", len(samples))
	}
	s := samples[0]
	if s.TxBps != 8000 {
		t.Errorf("TxBps = %d, want 8000", s.TxBps)
	}
	if s.RxBps != 16000 {
		t.Errorf("RxBps = %d, want 16000", s.RxBps)
	}
	if s.Source != "netflow" {
		t.Errorf("Source = %q, want netflow", s.Source)
	}
}

func TestAggregator_SkipsZeroRows(t *testing.T) {
	agg := NewAggregator()
	agg.AddTx("quiet", 0)
	agg.AddTx("loud", 60000)

	samples := agg.Flush(time.Now())
	if len(samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1 (zero row skipped)", len(samples))
	}
	if samples[0].DeviceID != "loud" {
		t.Errorf("DeviceID = %q, want loud", samples[0].DeviceID)
	}
}

func TestAggregator_FlushResetsWindow(t *testing.T) {
	agg := NewAggregator()
	agg.AddRx("dev-1", 60000)

	now := time.Now()
	agg.Flush(now)
	if agg.Due(now.Add(30 * time.Second)) {
		t.Error("window due 30s after flush, want not due")
	}
	if !agg.Due(now.Add(61 * time.Second)) {
		t.Error("window not due 61s after flush")
	}

	if samples := agg.Flush(now.Add(61 * time.Second)); len(samples) != 0 {
		t.Errorf("second flush returned %d samples, want 0", len(samples))
	}
}

func TestAggregator_AccumulatesAcrossRecords(t *testing.T) {
	agg := NewAggregator()
	agg.AddTx("dev-1", 30000)
	agg.AddTx("dev-1", 30000)

	samples := agg.Flush(time.Now())
	if len(samples) != 1 || samples[0].TxBps != 8000 {
		t.Fatalf("samples = %+v, want one row with TxBps 8000", samples)
	}
}
