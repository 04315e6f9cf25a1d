package enrich

import "strings"

// serviceRule maps an mDNS service type to classification hints.
type serviceRule struct {
	service string
	result  Result
}

// serviceRules is checked in order; the first matching service wins for each
// field (later matches only fill fields the earlier ones left empty).
var serviceRules = []serviceRule{
	{"_apple-mobdev2._tcp", Result{DeviceType: TypePhone, DeviceBrand: "Apple"}},
	{"_touch-able._tcp", Result{DeviceBrand: "Apple"}},
	{"_companion-link._tcp", Result{DeviceBrand: "Apple"}},
	{"_airplay._tcp", Result{DeviceType: TypeTV}},
	{"_raop._tcp", Result{DeviceType: TypeSpeaker}},
	{"_googlecast._tcp", Result{DeviceType: TypeTV, DeviceBrand: "Google"}},
	{"_spotify-connect._tcp", Result{DeviceType: TypeSpeaker}},
	{"_sonos._tcp", Result{DeviceType: TypeSpeaker, DeviceBrand: "Sonos"}},
	{"_ipp._tcp", Result{DeviceType: TypePrinter}},
	{"_ipps._tcp", Result{DeviceType: TypePrinter}},
	{"_printer._tcp", Result{DeviceType: TypePrinter}},
	{"_pdl-datastream._tcp", Result{DeviceType: TypePrinter}},
	{"_scanner._tcp", Result{DeviceType: TypePrinter}},
	{"_afpovertcp._tcp", Result{DeviceType: TypeNAS}},
	{"_smb._tcp", Result{DeviceType: TypeNAS}},
	{"_nfs._tcp", Result{DeviceType: TypeNAS}},
	{"_homekit._tcp", Result{DeviceType: TypeIoT}},
	{"_hap._tcp", Result{DeviceType: TypeIoT}},
	{"_hue._tcp", Result{DeviceType: TypeIoT, DeviceBrand: "Philips"}},
	{"_workstation._tcp", Result{DeviceType: TypeDesktop}},
	{"_ssh._tcp", Result{OSFamily: "Unix-like"}},
	{"_smartview._tcp", Result{DeviceType: TypeTV, DeviceBrand: "Samsung"}},
}

// fromMDNS derives classification hints from advertised service types.
// Services are matched by prefix so instance-qualified names also hit.
func fromMDNS(services []string) Result {
	if len(services) == 0 {
		return Result{}
	}

	var r Result
	for _, rule := range serviceRules {
		for _, svc := range services {
			if strings.HasPrefix(strings.ToLower(svc), rule.service) {
				fill(&r, rule.result)
				break
			}
		}
	}
	return r
}

// fill copies non-empty fields of src into empty fields of dst.
func fill(dst *Result, src Result) {
	if dst.OSFamily == "" {
		dst.OSFamily = src.OSFamily
	}
	if dst.OSVersion == "" {
		dst.OSVersion = src.OSVersion
	}
	if dst.DeviceType == "" {
		dst.DeviceType = src.DeviceType
	}
	if dst.DeviceBrand == "" {
		dst.DeviceBrand = src.DeviceBrand
	}
	if dst.DeviceModel == "" {
		dst.DeviceModel = src.DeviceModel
	}
}
