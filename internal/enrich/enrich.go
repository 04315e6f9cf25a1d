// Package enrich classifies devices from passive network signals: OUI
// manufacturer names, ICMP TTL bands, mDNS service advertisements, hostname
// patterns, DHCP option-60 vendor classes, and Apple model codes. The engine
// is a pure function over collected signals; persistence is the caller's job.
package enrich

import "strings"

// Device type values stored in devices.device_type.
const (
	TypePhone   = "phone"
	TypeTablet  = "tablet"
	TypeLaptop  = "laptop"
	TypeDesktop = "desktop"
	TypeServer  = "server"
	TypeTV      = "tv"
	TypePrinter = "printer"
	TypeRouter  = "router"
	TypeNAS     = "nas"
	TypeCamera  = "camera"
	TypeWatch   = "watch"
	TypeSpeaker = "speaker"
	TypeConsole = "console"
	TypeIoT     = "iot"
)

// Source identifiers recorded in devices.enrichment_source.
const (
	SourceOUI      = "oui"
	SourceTTL      = "ttl"
	SourceMDNS     = "mdns"
	SourceHostname = "hostname"
	SourceDHCP     = "dhcp"
	SourceModelDB  = "model_db"
)

// Signals carries everything the engine knows about one device. Zero values
// mean the signal is absent (TTL 0 = no probe result).
type Signals struct {
	Hostname        string
	Vendor          string // manufacturer name from OUI lookup
	MDNSServices    []string
	DHCPVendorClass string
	TTL             int
}

// Result holds the classification output. Empty fields carry no value and
// must not overwrite existing device columns.
type Result struct {
	OSFamily    string
	OSVersion   string
	DeviceType  string
	DeviceBrand string
	DeviceModel string
	Source      string
}

// Empty reports whether the engine produced nothing usable.
func (r Result) Empty() bool {
	return r.OSFamily == "" && r.OSVersion == "" && r.DeviceType == "" &&
		r.DeviceBrand == "" && r.DeviceModel == ""
}

// Enrich runs every signal source in precedence order. A field set by a
// higher-priority source is never overwritten by a lower one, with two
// exceptions: an Apple model-code match overrides model and device type,
// and the TTL=64 Unix-like hint only applies when nothing else identified
// the OS. Source records the last source that contributed a field.
func Enrich(sig Signals) Result {
	var r Result

	merge(&r, SourceOUI, fromVendor(sig.Vendor))
	merge(&r, SourceTTL, fromTTL(sig.TTL))
	merge(&r, SourceMDNS, fromMDNS(sig.MDNSServices))
	merge(&r, SourceHostname, fromHostname(sig.Hostname))
	merge(&r, SourceDHCP, fromVendorClass(sig.DHCPVendorClass))

	if model, name := appleModel(sig); model != "" {
		r.DeviceModel = name
		if t := appleModelType(model); t != "" {
			r.DeviceType = t
		}
		if r.DeviceBrand == "" {
			r.DeviceBrand = "Apple"
		}
		r.Source = SourceModelDB
	}

	// TTL=64 is shared by everything Unix-derived, so it only ever fills a
	// blank os_family.
	if r.OSFamily == "" && sig.TTL == 64 {
		r.OSFamily = "Unix-like"
		r.Source = SourceTTL
	}

	return r
}

// merge fills empty fields of dst from src; dst.Source is updated when src
// contributed at least one field.
func merge(dst *Result, source string, src Result) {
	contributed := false
	if dst.OSFamily == "" && src.OSFamily != "" {
		dst.OSFamily = src.OSFamily
		contributed = true
	}
	if dst.OSVersion == "" && src.OSVersion != "" {
		dst.OSVersion = src.OSVersion
		contributed = true
	}
	if dst.DeviceType == "" && src.DeviceType != "" {
		dst.DeviceType = src.DeviceType
		contributed = true
	}
	if dst.DeviceBrand == "" && src.DeviceBrand != "" {
		dst.DeviceBrand = src.DeviceBrand
		contributed = true
	}
	if dst.DeviceModel == "" && src.DeviceModel != "" {
		dst.DeviceModel = src.DeviceModel
		contributed = true
	}
	if contributed {
		dst.Source = source
	}
}

// fromTTL maps a probe TTL to an OS band. 64 is handled as a fallback in
// Enrich; 128 and 255 are distinctive enough to claim outright.
func fromTTL(ttl int) Result {
	switch ttl {
	case 128:
		return Result{OSFamily: "Windows"}
	case 255:
		return Result{DeviceType: TypeRouter}
	default:
		return Result{}
	}
}

// fromVendorClass interprets a DHCP option-60 vendor class identifier.
func fromVendorClass(vc string) Result {
	if vc == "" {
		return Result{}
	}
	lower := strings.ToLower(vc)
	switch {
	case strings.HasPrefix(lower, "android-dhcp-"):
		// The suffix is the Android release; it may be empty.
		return Result{
			OSFamily:   "Android",
			OSVersion:  vc[len("android-dhcp-"):],
			DeviceType: TypePhone,
		}
	case strings.HasPrefix(lower, "msft"):
		return Result{OSFamily: "Windows"}
	case strings.Contains(lower, "iphone"):
		return Result{OSFamily: "iOS", DeviceType: TypePhone, DeviceBrand: "Apple"}
	case strings.Contains(lower, "ipad"):
		return Result{OSFamily: "iPadOS", DeviceType: TypeTablet, DeviceBrand: "Apple"}
	case strings.HasPrefix(lower, "dhcpcd-"), strings.HasPrefix(lower, "udhcpc"):
		return Result{OSFamily: "Linux"}
	default:
		return Result{}
	}
}
