// Package device declares the BLE connection and GATT abstractions shared
// across transport backends: Device, Connection, Service, Characteristic,
// Descriptor, and the Advertisement/DeviceInfo pair used during discovery.
//
// The concrete implementation backing these interfaces lives in the go-ble
// subpackage; this package itself holds only the contracts, the error
// taxonomy for connection-state failures, and UUID normalization helpers
// shared by every backend.
package device
