package enrich

import "strings"

// appleModels maps Apple hardware identifiers (as advertised in mDNS
// device-info records and some hostnames) to marketed names. The table is
// intentionally partial; unknown codes fall through to the other sources.
var appleModels = map[string]string{
	"iPhone10,1": "iPhone 8",
	"iPhone10,2": "iPhone 8 Plus",
	"iPhone10,3": "iPhone X",
	"iPhone11,2": "iPhone XS",
	"iPhone11,8": "iPhone XR",
	"iPhone12,1": "iPhone 11",
	"iPhone12,3": "iPhone 11 Pro",
	"iPhone12,8": "iPhone SE 2020",
	"iPhone13,1": "iPhone 12 mini",
	"iPhone13,2": "iPhone 12",
	"iPhone13,3": "iPhone 12 Pro",
	"iPhone13,4": "iPhone 12 Pro Max",
	"iPhone14,2": "iPhone 13 Pro",
	"iPhone14,3": "iPhone 13 Pro Max",
	"iPhone14,4": "iPhone 13 mini",
	"iPhone14,5": "iPhone 13",
	"iPhone14,6": "iPhone SE 2022",
	"iPhone14,7": "iPhone 14",
	"iPhone15,2": "iPhone 14 Pro",
	"iPhone15,4": "iPhone 15",
	"iPhone16,1": "iPhone 15 Pro",
	"iPhone17,3": "iPhone 16",

	"iPad7,11":  "iPad 7",
	"iPad11,6":  "iPad 8",
	"iPad12,1":  "iPad 9",
	"iPad13,1":  "iPad Air 4",
	"iPad13,4":  "iPad Pro 11-inch 3",
	"iPad13,18": "iPad 10",
	"iPad14,1":  "iPad mini 6",

	"Watch6,6": "Apple Watch Series 7",
	"Watch6,14": "Apple Watch Series 8",
	"Watch7,1": "Apple Watch Series 9",

	"AppleTV6,2":  "Apple TV 4K",
	"AppleTV11,1": "Apple TV 4K 2nd gen",
	"AppleTV14,1": "Apple TV 4K 3rd gen",

	"MacBookAir10,1": "MacBook Air M1",
	"MacBookPro17,1": "MacBook Pro 13-inch M1",
	"MacBookPro18,3": "MacBook Pro 14-inch M1 Pro",
	"Mac14,2":        "MacBook Air M2",
	"Mac14,7":        "MacBook Pro 13-inch M2",
	"Mac15,3":        "MacBook Pro 14-inch M3",
	"Macmini9,1":     "Mac mini M1",
	"Mac14,3":        "Mac mini M2",
	"iMac21,1":       "iMac 24-inch M1",
	"Mac15,4":        "iMac 24-inch M3",
	"Mac13,1":        "Mac Studio M1 Max",
	"Mac14,13":       "Mac Studio M2 Max",
}

// appleModel scans the hostname and mDNS service strings for a known Apple
// hardware identifier, returning the code and its marketed name.
func appleModel(sig Signals) (code, name string) {
	for c, n := range appleModels {
		lc := strings.ToLower(c)
		if strings.Contains(strings.ToLower(sig.Hostname), lc) {
			return c, n
		}
		for _, svc := range sig.MDNSServices {
			if strings.Contains(strings.ToLower(svc), lc) {
				return c, n
			}
		}
	}
	return "", ""
}

// appleModelType maps a hardware identifier prefix to a coarse device type.
func appleModelType(code string) string {
	switch {
	case strings.HasPrefix(code, "iPhone"):
		return TypePhone
	case strings.HasPrefix(code, "iPad"):
		return TypeTablet
	case strings.HasPrefix(code, "Watch"):
		return TypeWatch
	case strings.HasPrefix(code, "AppleTV"):
		return TypeTV
	case strings.HasPrefix(code, "MacBook"):
		return TypeLaptop
	case strings.HasPrefix(code, "Macmini"), strings.HasPrefix(code, "iMac"), strings.HasPrefix(code, "Mac"):
		return TypeDesktop
	default:
		return ""
	}
}
