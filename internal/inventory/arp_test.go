package inventory

import "testing"

func TestParseARPOutput_Linux(t *testing.T) {
	output := `IP address       HW type     Flags       HW address            Mask     Device
10.0.0.1         0x1         0x2         aa:bb:cc:dd:ee:01     *        eth0
10.0.0.2         0x1         0x0         00:00:00:00:00:00     *        eth0
10.0.0.3         0x1         0x2         aa:bb:cc:dd:ee:03     *        eth0
`
	table := ParseARPOutput(output, "linux")
	if len(table) != 2 {
		t.Fatalf("len(table) = %d, want 2", len(table))
	}
	if table["10.0.0.1"] != "AA:BB:CC:DD:EE:01" {
		t.Errorf("table[10.0.0.1] = %q", table["10.0.0.1"])
	}
	if _, ok := table["10.0.0.2"]; ok {
		t.Error("incomplete entry (flags 0x0) not skipped")
	}
}

func TestParseARPOutput_Windows(t *testing.T) {
	output := `
Interface: 10.0.0.5 --- 0x4
  Internet Address      Physical Address      Type
  10.0.0.1              aa-bb-cc-dd-ee-01     dynamic
  10.0.0.255            ff-ff-ff-ff-ff-ff     static
  224.0.0.22            01-00-5e-00-00-16     static
`
	table := ParseARPOutput(output, "windows")
	if table["10.0.0.1"] != "AA:BB:CC:DD:EE:01" {
		t.Errorf("table[10.0.0.1] = %q", table["10.0.0.1"])
	}
	// Broadcast rows survive the raw parse; filtering happens upstream on
	// the normalized MAC.
	if table["10.0.0.255"] != "FF:FF:FF:FF:FF:FF" {
		t.Errorf("table[10.0.0.255] = %q", table["10.0.0.255"])
	}
}

func TestParseARPOutput_Darwin(t *testing.T) {
	output := `router.lan (10.0.0.1) at aa:bb:cc:dd:ee:1 on en0 ifscope [ethernet]
? (10.0.0.7) at (incomplete) on en0 ifscope [ethernet]
nas.lan (10.0.0.8) at aa:bb:cc:dd:ee:8 on en0 ifscope [ethernet]
`
	table := ParseARPOutput(output, "darwin")
	if len(table) != 2 {
		t.Fatalf("len(table) = %d, want 2", len(table))
	}
	if table["10.0.0.1"] != "AA:BB:CC:DD:EE:1" {
		t.Errorf("table[10.0.0.1] = %q", table["10.0.0.1"])
	}
	if _, ok := table["10.0.0.7"]; ok {
		t.Error("incomplete entry not skipped")
	}
}

func TestParseARPOutput_UnknownPlatform(t *testing.T) {
	if table := ParseARPOutput("anything", "plan9"); len(table) != 0 {
		t.Errorf("len(table) = %d, want 0", len(table))
	}
}

func TestARPReaderFilter(t *testing.T) {
	logger := testLogger(t)
	r := NewARPReader(logger, []string{"10.0.0.0/24"})

	table := r.filter(map[string]string{
		"10.0.0.1":   "aa:bb:cc:dd:ee:1", // single-digit octet, normalized
		"10.0.0.255": "FF:FF:FF:FF:FF:FF",
		"10.0.0.9":   "00:00:00:00:00:00",
		"192.168.5.4": "AA:BB:CC:DD:EE:44", // outside configured subnet
	})

	if len(table) != 1 {
		t.Fatalf("len(table) = %d, want 1: %v", len(table), table)
	}
	if table["10.0.0.1"] != "AA:BB:CC:DD:EE:01" {
		t.Errorf("table[10.0.0.1] = %q, want normalized MAC", table["10.0.0.1"])
	}
}
