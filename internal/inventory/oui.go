package inventory

import "strings"

// OUIResolver resolves MAC address prefixes to manufacturer names.
type OUIResolver interface {
	Lookup(mac string) string
}

// StaticOUI is a compile-time table of well-known OUI prefixes. A full IEEE
// registry can be substituted behind the same interface.
type StaticOUI struct{}

// NewStaticOUI returns the built-in OUI table.
func NewStaticOUI() *StaticOUI {
	return &StaticOUI{}
}

// ouiPrefixes maps the first three octets (upper-colon) to manufacturer
// names. Deliberately small; unknown prefixes resolve to "".
var ouiPrefixes = map[string]string{
	"00:03:93": "Apple, Inc.",
	"3C:22:FB": "Apple, Inc.",
	"BE:83:28": "Apple, Inc.",
	"F0:18:98": "Apple, Inc.",
	"A4:83:E7": "Apple, Inc.",
	"28:6F:B9": "Samsung Electronics Co.,Ltd",
	"8C:77:12": "Samsung Electronics Co.,Ltd",
	"B8:27:EB": "Raspberry Pi Foundation",
	"DC:A6:32": "Raspberry Pi Trading Ltd",
	"E4:5F:01": "Raspberry Pi Trading Ltd",
	"24:0A:C4": "Espressif Inc.",
	"30:AE:A4": "Espressif Inc.",
	"EC:FA:BC": "Espressif Inc.",
	"00:11:32": "Synology Incorporated",
	"24:5E:BE": "QNAP Systems, Inc.",
	"74:AC:B9": "Ubiquiti Inc.",
	"F0:9F:C2": "Ubiquiti Inc.",
	"E4:8D:8C": "Routerboard.com",
	"48:8F:5A": "Routerboard.com",
	"A0:40:A0": "NETGEAR",
	"50:C7:BF": "TP-LINK TECHNOLOGIES CO.,LTD.",
	"00:1D:7E": "Cisco-Linksys, LLC",
	"00:18:0A": "Cisco Meraki",
	"FC:EC:DA": "Ubiquiti Inc.",
	"00:04:F2": "Polycom",
	"00:1B:A9": "Brother industries, LTD.",
	"00:80:77": "Brother Industries, LTD.",
	"00:00:85": "Canon Inc.",
	"00:26:AB": "Seiko Epson Corporation",
	"94:9F:3E": "Sonos, Inc.",
	"B0:A7:37": "Roku, Inc.",
	"D8:31:34": "Roku, Inc.",
	"FC:65:DE": "Amazon Technologies Inc.",
	"44:65:0D": "Amazon Technologies Inc.",
	"F4:F5:D8": "Google, Inc.",
	"54:60:09": "Google, Inc.",
	"00:17:88": "Philips Lighting BV",
	"EC:B5:FA": "Philips Lighting BV",
	"7C:BB:8A": "Nintendo Co., Ltd.",
	"00:50:F2": "Microsoft Corporation",
	"28:18:78": "Microsoft Corporation",
	"3C:5A:B4": "Google, Inc.",
	"94:DE:80": "GIGA-BYTE TECHNOLOGY CO.,LTD.",
	"D8:BB:C1": "Micro-Star INTL CO., LTD.",
	"54:04:A6": "ASUSTek COMPUTER INC.",
	"1C:69:7A": "EliteGroup Computer Systems Co., LTD.",
	"F8:75:A4": "LCFC(HeFei) Electronics Technology co., ltd", // Lenovo
	"8C:16:45": "LCFC(HeFei) Electronics Technology co., ltd",
	"18:60:24": "HP Inc.",
	"B4:B6:86": "Hewlett Packard",
	"F4:8E:38": "Dell Inc.",
	"18:DB:F2": "Dell Inc.",
	"64:16:7F": "Polycom",
	"AC:84:C6": "TP-LINK TECHNOLOGIES CO.,LTD.",
	"98:DA:C4": "TP-LINK TECHNOLOGIES CO.,LTD.",
	"70:85:C2": "ASRock Incorporation",
	"00:24:E4": "Withings",
	"CC:6D:A0": "Roku, Inc.",
	"9C:8E:CD": "Amcrest Technologies",
	"44:19:B6": "Hangzhou Hikvision Digital Technology Co.,Ltd.",
	"EC:71:DB": "Reolink Innovation Limited",
}

// Lookup returns the manufacturer for a canonical upper-colon MAC, or "".
func (t *StaticOUI) Lookup(mac string) string {
	if len(mac) < 8 {
		return ""
	}
	return ouiPrefixes[strings.ToUpper(mac[:8])]
}
