package netflow

import (
	"bytes"
	"testing"
)

func sampleHeader() Header {
	return Header{
		Version:          5,
		SysUptime:        123456,
		UnixSecs:         1724580000,
		UnixNsecs:        500,
		FlowSequence:     42,
		EngineType:       1,
		EngineID:         2,
		SamplingInterval: 0,
	}
}

func sampleRecord(src, dst [4]byte, octets uint32) Record {
	return Record{
		SrcAddr:  src,
		DstAddr:  dst,
		NextHop:  [4]byte{10, 0, 0, 1},
		Input:    1,
		Output:   2,
		Packets:  10,
		Octets:   octets,
		First:    1000,
		Last:     2000,
		SrcPort:  51234,
		DstPort:  443,
		TCPFlags: 0x18,
		Protocol: 6,
		SrcAS:    64512,
		DstAS:    15169,
		SrcMask:  24,
		DstMask:  8,
	}
}

func TestParseMarshalRoundTrip(t *testing.T) {
	records := []Record{
		sampleRecord([4]byte{10, 0, 0, 10}, [4]byte{8, 8, 8, 8}, 60000),
		sampleRecord([4]byte{8, 8, 8, 8}, [4]byte{10, 0, 0, 10}, 120000),
	}
	wire := Marshal(sampleHeader(), records)

	h, parsed, err := Parse(wire)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if h.Count != 2 {
		t.Errorf("Count = %d, want 2", h.Count)
	}
	want := sampleHeader()
	want.Count = 2
	if h != want {
		t.Errorf("header = %+v, want %+v", h, want)
	}
	for i := range records {
		if parsed[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, parsed[i], records[i])
		}
	}

	// Re-marshal must be byte-identical.
	if !bytes.Equal(Marshal(h, parsed), wire) {
		t.Error("re-marshaled packet differs from original")
	}
}

func TestParse_RejectsWrongVersion(t *testing.T) {
	h := sampleHeader()
	h.Version = 9
	wire := Marshal(h, nil)
	if _, _, err := Parse(wire); err == nil {
		t.Error("expected error for version 9")
	}
}

func TestParse_RejectsTruncated(t *testing.T) {
	wire := Marshal(sampleHeader(), []Record{
		sampleRecord([4]byte{10, 0, 0, 10}, [4]byte{8, 8, 8, 8}, 100),
	})

	// Shorter than header.
	if _, _, err := Parse(wire[:10]); err == nil {
		t.Error("expected error for 10-byte packet")
	}
	// Header claims one record but payload is cut.
	if _, _, err := Parse(wire[:headerLen+recordLen-1]); err == nil {
		t.Error("expected error for truncated record payload")
	}
}

func TestRecordIPs(t *testing.T) {
	rec := sampleRecord([4]byte{10, 0, 0, 10}, [4]byte{8, 8, 8, 8}, 100)
	if rec.SrcIP() != "10.0.0.10" {
		t.Errorf("SrcIP = %q", rec.SrcIP())
	}
	if rec.DstIP() != "8.8.8.8" {
		t.Errorf("DstIP = %q", rec.DstIP())
	}
}
