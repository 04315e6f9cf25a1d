package enrich

import "strings"

// vendorRule maps a set of manufacturer name patterns to a brand and an
// optional device type hint.
type vendorRule struct {
	brand      string
	deviceType string
	patterns   []string
}

// vendorRules defines manufacturer-to-classification mappings. Patterns are
// matched case-insensitively via strings.Contains against the manufacturer
// name returned by OUI lookup.
//
// Order matters: more specific patterns (e.g., "hp networking") must appear
// before broader ones (e.g., "hewlett packard") so the first match wins.
var vendorRules = []vendorRule{
	// Networking infrastructure -- specific patterns first.
	{"Ubiquiti", TypeRouter, []string{"ubiquiti"}},
	{"MikroTik", TypeRouter, []string{"mikrotik"}},
	{"Cisco", TypeRouter, []string{"cisco", "meraki"}},
	{"Netgear", TypeRouter, []string{"netgear"}},
	{"TP-Link", TypeRouter, []string{"tp-link"}},
	{"D-Link", TypeRouter, []string{"d-link"}},
	{"ASUS", TypeRouter, []string{"asustek"}},
	{"HPE", TypeRouter, []string{"hp networking", "aruba", "hewlett packard enterprise"}},

	// Printers.
	{"Brother", TypePrinter, []string{"brother"}},
	{"Canon", TypePrinter, []string{"canon"}},
	{"Epson", TypePrinter, []string{"epson", "seiko epson"}},
	{"Lexmark", TypePrinter, []string{"lexmark"}},
	{"Xerox", TypePrinter, []string{"xerox"}},

	// NAS.
	{"Synology", TypeNAS, []string{"synology"}},
	{"QNAP", TypeNAS, []string{"qnap"}},
	{"Western Digital", TypeNAS, []string{"western digital"}},

	// Cameras.
	{"Ring", TypeCamera, []string{"ring llc"}},
	{"Wyze", TypeCamera, []string{"wyze"}},
	{"Hikvision", TypeCamera, []string{"hikvision"}},
	{"Reolink", TypeCamera, []string{"reolink"}},

	// Media and IoT.
	{"Sonos", TypeSpeaker, []string{"sonos"}},
	{"Roku", TypeTV, []string{"roku"}},
	{"Amazon", TypeIoT, []string{"amazon"}},
	{"Google", "", []string{"google"}},
	{"Raspberry Pi", TypeIoT, []string{"raspberry pi"}},
	{"Espressif", TypeIoT, []string{"espressif"}},
	{"Philips", TypeIoT, []string{"philips"}},
	{"Nintendo", TypeConsole, []string{"nintendo"}},
	{"Sony", TypeConsole, []string{"sony interactive"}},

	// Brand-only matches -- type is too ambiguous for these vendors.
	{"Apple", "", []string{"apple"}},
	{"Samsung", "", []string{"samsung"}},
	{"Dell", TypeDesktop, []string{"dell"}},
	{"Lenovo", TypeDesktop, []string{"lenovo"}},
	{"HP", TypeDesktop, []string{"hp inc", "hewlett packard"}},
	{"Microsoft", "", []string{"microsoft"}},
	{"Intel", "", []string{"intel corporate"}},
	{"Xiaomi", TypePhone, []string{"xiaomi"}},
	{"OnePlus", TypePhone, []string{"oneplus"}},
	{"Huawei", TypePhone, []string{"huawei"}},
	{"Motorola", TypePhone, []string{"motorola"}},
}

// fromVendor returns a brand and a device type hint from the OUI
// manufacturer name.
func fromVendor(vendor string) Result {
	if vendor == "" {
		return Result{}
	}

	lower := strings.ToLower(vendor)
	for i := range vendorRules {
		for _, pattern := range vendorRules[i].patterns {
			if strings.Contains(lower, pattern) {
				return Result{
					DeviceBrand: vendorRules[i].brand,
					DeviceType:  vendorRules[i].deviceType,
				}
			}
		}
	}
	return Result{}
}
