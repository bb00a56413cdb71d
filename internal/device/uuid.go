package device

import "strings"

// sigBaseSuffix is the Bluetooth SIG base UUID after its first 8 hex digits.
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal BLE library format: lowercase, no dashes,
// no 0x/0X prefix. A 128-bit UUID on the Bluetooth SIG base (0000xxxx-0000-1000-8000-00805f9b34fb)
// is shortened to its 16-bit form "xxxx"; any other UUID keeps all of its hex digits.
// gattlink relies on this to compare its Nordic UART service/characteristic constants, which are
// already stored dash-free, against whatever format a peripheral's GATT table reports.
// Handles both standard UUID format (with dashes) and already normalized format (without dashes)
func NormalizeUUID(uuid string) string {
	u := strings.TrimPrefix(strings.ToLower(strings.ReplaceAll(uuid, "-", "")), "0x")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && u[8:] == sigBaseSuffix {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format
func NormalizeUUIDs(uuids []string) []string {
	normalized := make([]string, len(uuids))
	for i, uuid := range uuids {
		normalized[i] = NormalizeUUID(uuid)
	}
	return normalized
}
