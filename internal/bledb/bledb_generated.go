package bledb

// Static subset of the Bluetooth SIG / Nordic Semiconductor UUID database,
// covering the services, characteristics, descriptors and appearance codes
// this repo's test fixtures and the Nordic UART profile actually reference.
// DataVersion identifies the snapshot; bump it whenever the table below changes.
const DataVersion = "static-2026.1"

var serviceNames = map[string]string{
	"1800":                             "Generic Access",
	"1801":                             "Generic Attribute",
	"180a":                             "Device Information",
	"180d":                             "Heart Rate",
	"180f":                             "Battery Service",
	"6e400001b5a3f393e0a9e50e24dcca9e": "Nordic UART Service",
}

var characteristicNames = map[string]string{
	"2a00":                             "Device Name",
	"2a01":                             "Appearance",
	"2a19":                             "Battery Level",
	"2a29":                             "Manufacturer Name String",
	"2a37":                             "Heart Rate Measurement",
	"6e400002b5a3f393e0a9e50e24dcca9e": "Nordic UART RX",
	"6e400003b5a3f393e0a9e50e24dcca9e": "Nordic UART TX",
}

var descriptorNames = map[string]string{
	"2900": "Characteristic Extended Properties",
	"2901": "Characteristic User Descriptor",
	"2902": "Client Characteristic Configuration",
	"2903": "Server Characteristic Configuration",
}

var appearanceNames = map[uint16]string{
	0:   "Unknown",
	64:  "Generic Phone",
	832: "Generic Heart Rate Sensor",
	960: "Generic Blood Pressure",
}

// NormalizeUUID collapses a UUID in any of its common textual forms (braces,
// dashes, 0x prefix, full 128-bit Bluetooth SIG base) down to a bare lowercase
// hex string suitable for map lookup. 16-bit SIG UUIDs keep their short form;
// everything else keeps its full 32-hex-digit form.
func NormalizeUUID(uuid string) string {
	u := stripUUIDDecoration(uuid)
	switch {
	case len(u) == 4:
		return u
	case len(u) == 32 && u[8:] == sigBaseSuffix:
		return u[4:8]
	default:
		return u
	}
}

func stripUUIDDecoration(uuid string) string {
	out := make([]byte, 0, len(uuid))
	for i := 0; i < len(uuid); i++ {
		c := uuid[i]
		switch c {
		case '-', '{', '}':
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	s := string(out)
	if len(s) > 2 && s[0] == '0' && s[1] == 'x' {
		s = s[2:]
	}
	return s
}

const sigBaseSuffix = "00001000800000805f9b34fb"

// LookupService returns the human-readable name for a service UUID, or ""
// when unknown.
func LookupService(uuid string) string {
	return serviceNames[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the human-readable name for a characteristic
// UUID, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristicNames[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the human-readable name for a descriptor UUID, or
// "" when unknown.
func LookupDescriptor(uuid string) string {
	return descriptorNames[NormalizeUUID(uuid)]
}

// LookupAppearanceCode returns the human-readable name for a GAP appearance
// value, or "" when unknown.
func LookupAppearanceCode(code uint16) string {
	return appearanceNames[code]
}
