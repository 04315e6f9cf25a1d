package enrich

import "testing"

func TestEnrich_ApplePhonePrecedence(t *testing.T) {
	r := Enrich(Signals{
		Hostname:     "Bernadettes-iPhone",
		Vendor:       "Apple, Inc.",
		MDNSServices: []string{"_apple-mobdev2._tcp", "_airplay._tcp"},
		TTL:          64,
	})

	if r.OSFamily != "iOS" {
		t.Errorf("OSFamily = %q, want %q", r.OSFamily, "iOS")
	}
	if r.DeviceType != TypePhone {
		t.Errorf("DeviceType = %q, want %q", r.DeviceType, TypePhone)
	}
	if r.DeviceBrand != "Apple" {
		t.Errorf("DeviceBrand = %q, want %q", r.DeviceBrand, "Apple")
	}
	if r.Source != SourceHostname && r.Source != SourceModelDB {
		t.Errorf("Source = %q, want hostname or model_db", r.Source)
	}
}

func TestEnrich_TTL64NeverOverrides(t *testing.T) {
	r := Enrich(Signals{
		Hostname: "DESKTOP-7H3K9",
		TTL:      64, // contradictory probe, hostname wins
	})
	if r.OSFamily != "Windows" {
		t.Errorf("OSFamily = %q, want %q", r.OSFamily, "Windows")
	}
}

func TestEnrich_TTL64Fallback(t *testing.T) {
	r := Enrich(Signals{TTL: 64})
	if r.OSFamily != "Unix-like" {
		t.Errorf("OSFamily = %q, want %q", r.OSFamily, "Unix-like")
	}
	if r.Source != SourceTTL {
		t.Errorf("Source = %q, want %q", r.Source, SourceTTL)
	}
}

func TestEnrich_TTL128Windows(t *testing.T) {
	r := Enrich(Signals{TTL: 128})
	if r.OSFamily != "Windows" {
		t.Errorf("OSFamily = %q, want %q", r.OSFamily, "Windows")
	}
}

func TestEnrich_AndroidDHCPEmptyVersion(t *testing.T) {
	r := Enrich(Signals{DHCPVendorClass: "android-dhcp-"})
	if r.OSFamily != "Android" {
		t.Errorf("OSFamily = %q, want %q", r.OSFamily, "Android")
	}
	if r.OSVersion != "" {
		t.Errorf("OSVersion = %q, want empty", r.OSVersion)
	}
}

func TestEnrich_AndroidDHCPVersion(t *testing.T) {
	r := Enrich(Signals{DHCPVendorClass: "android-dhcp-13"})
	if r.OSFamily != "Android" || r.OSVersion != "13" {
		t.Errorf("got (%q, %q), want (Android, 13)", r.OSFamily, r.OSVersion)
	}
}

func TestEnrich_AppleModelOverride(t *testing.T) {
	r := Enrich(Signals{
		Hostname:     "bernadettes-iphone",
		MDNSServices: []string{"_device-info._tcp model=iPhone14,6"},
	})
	if r.DeviceModel != "iPhone SE 2022" {
		t.Errorf("DeviceModel = %q, want %q", r.DeviceModel, "iPhone SE 2022")
	}
	if r.DeviceType != TypePhone {
		t.Errorf("DeviceType = %q, want %q", r.DeviceType, TypePhone)
	}
	if r.Source != SourceModelDB {
		t.Errorf("Source = %q, want %q", r.Source, SourceModelDB)
	}
}

func TestEnrich_MDNSPrinter(t *testing.T) {
	r := Enrich(Signals{MDNSServices: []string{"_ipp._tcp"}})
	if r.DeviceType != TypePrinter {
		t.Errorf("DeviceType = %q, want %q", r.DeviceType, TypePrinter)
	}
	if r.Source != SourceMDNS {
		t.Errorf("Source = %q, want %q", r.Source, SourceMDNS)
	}
}

func TestEnrich_VendorHints(t *testing.T) {
	tests := []struct {
		vendor    string
		wantBrand string
		wantType  string
	}{
		{"Synology Incorporated", "Synology", TypeNAS},
		{"Ubiquiti Inc.", "Ubiquiti", TypeRouter},
		{"Brother Industries, Ltd.", "Brother", TypePrinter},
		{"Apple, Inc.", "Apple", ""},
		{"Unknown Vendor Co.", "", ""},
	}
	for _, tt := range tests {
		r := fromVendor(tt.vendor)
		if r.DeviceBrand != tt.wantBrand {
			t.Errorf("fromVendor(%q).DeviceBrand = %q, want %q", tt.vendor, r.DeviceBrand, tt.wantBrand)
		}
		if r.DeviceType != tt.wantType {
			t.Errorf("fromVendor(%q).DeviceType = %q, want %q", tt.vendor, r.DeviceType, tt.wantType)
		}
	}
}

func TestEnrich_Empty(t *testing.T) {
	r := Enrich(Signals{})
	if !r.Empty() {
		t.Errorf("Enrich(zero signals) = %+v, want empty", r)
	}
	if r.Source != "" {
		t.Errorf("Source = %q, want empty", r.Source)
	}
}

func TestEnrich_WindowsDHCP(t *testing.T) {
	r := Enrich(Signals{DHCPVendorClass: "MSFT 5.0"})
	if r.OSFamily != "Windows" {
		t.Errorf("OSFamily = %q, want %q", r.OSFamily, "Windows")
	}
	if r.Source != SourceDHCP {
		t.Errorf("Source = %q, want %q", r.Source, SourceDHCP)
	}
}
