package enrich

import "strings"

// hostnameRule maps a hostname substring token to classification hints.
type hostnameRule struct {
	token  string
	result Result
}

// hostnameRules is checked in order against the lowercased hostname. More
// specific tokens (e.g., "macbook") come before broader ones (e.g., "mac").
var hostnameRules = []hostnameRule{
	{"iphone", Result{OSFamily: "iOS", DeviceType: TypePhone, DeviceBrand: "Apple"}},
	{"ipad", Result{OSFamily: "iPadOS", DeviceType: TypeTablet, DeviceBrand: "Apple"}},
	{"macbook", Result{OSFamily: "macOS", DeviceType: TypeLaptop, DeviceBrand: "Apple"}},
	{"imac", Result{OSFamily: "macOS", DeviceType: TypeDesktop, DeviceBrand: "Apple"}},
	{"mac-mini", Result{OSFamily: "macOS", DeviceType: TypeDesktop, DeviceBrand: "Apple"}},
	{"macmini", Result{OSFamily: "macOS", DeviceType: TypeDesktop, DeviceBrand: "Apple"}},
	{"apple-tv", Result{OSFamily: "tvOS", DeviceType: TypeTV, DeviceBrand: "Apple"}},
	{"appletv", Result{OSFamily: "tvOS", DeviceType: TypeTV, DeviceBrand: "Apple"}},
	{"watch", Result{OSFamily: "watchOS", DeviceType: TypeWatch, DeviceBrand: "Apple"}},
	{"galaxy", Result{OSFamily: "Android", DeviceType: TypePhone, DeviceBrand: "Samsung"}},
	{"pixel", Result{OSFamily: "Android", DeviceType: TypePhone, DeviceBrand: "Google"}},
	{"android", Result{OSFamily: "Android", DeviceType: TypePhone}},
	{"oneplus", Result{OSFamily: "Android", DeviceType: TypePhone, DeviceBrand: "OnePlus"}},
	{"desktop-", Result{OSFamily: "Windows", DeviceType: TypeDesktop}},
	{"laptop-", Result{OSFamily: "Windows", DeviceType: TypeLaptop}},
	{"surface", Result{OSFamily: "Windows", DeviceType: TypeLaptop, DeviceBrand: "Microsoft"}},
	{"thinkpad", Result{DeviceType: TypeLaptop, DeviceBrand: "Lenovo"}},
	{"raspberrypi", Result{OSFamily: "Linux", DeviceType: TypeIoT, DeviceBrand: "Raspberry Pi"}},
	{"raspberry", Result{OSFamily: "Linux", DeviceType: TypeIoT, DeviceBrand: "Raspberry Pi"}},
	{"nas", Result{DeviceType: TypeNAS}},
	{"synology", Result{DeviceType: TypeNAS, DeviceBrand: "Synology"}},
	{"printer", Result{DeviceType: TypePrinter}},
	{"server", Result{DeviceType: TypeServer}},
	{"nintendo", Result{DeviceType: TypeConsole, DeviceBrand: "Nintendo"}},
	{"playstation", Result{DeviceType: TypeConsole, DeviceBrand: "Sony"}},
	{"xbox", Result{DeviceType: TypeConsole, DeviceBrand: "Microsoft"}},
	{"roku", Result{DeviceType: TypeTV, DeviceBrand: "Roku"}},
	{"chromecast", Result{DeviceType: TypeTV, DeviceBrand: "Google"}},
	{"esp32", Result{DeviceType: TypeIoT, DeviceBrand: "Espressif"}},
	{"esp8266", Result{DeviceType: TypeIoT, DeviceBrand: "Espressif"}},
	{"shelly", Result{DeviceType: TypeIoT, DeviceBrand: "Shelly"}},
	{"tasmota", Result{DeviceType: TypeIoT}},
	{"ubuntu", Result{OSFamily: "Linux"}},
	{"debian", Result{OSFamily: "Linux"}},
	{"fedora", Result{OSFamily: "Linux"}},
	{"arch", Result{OSFamily: "Linux"}},
}

// fromHostname derives classification hints from the device hostname.
func fromHostname(hostname string) Result {
	if hostname == "" {
		return Result{}
	}

	lower := strings.ToLower(hostname)
	var r Result
	for i := range hostnameRules {
		if strings.Contains(lower, hostnameRules[i].token) {
			fill(&r, hostnameRules[i].result)
		}
	}
	return r
}
