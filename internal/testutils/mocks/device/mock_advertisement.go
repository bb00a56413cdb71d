//go:build test

// Package device holds hand-maintained testify mocks for the internal/device
// interfaces, in the shape mockery would generate, scoped to what the
// testutils builders actually exercise.
package device

import "github.com/stretchr/testify/mock"

// MockAdvertisement implements device.Advertisement via testify/mock.
type MockAdvertisement struct {
	mock.Mock
}

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	args := m.Called()
	if v, ok := args.Get(0).([]byte); ok {
		return v
	}
	return nil
}

func (m *MockAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	args := m.Called()
	if v, ok := args.Get(0).([]struct {
		UUID string
		Data []byte
	}); ok {
		return v
	}
	return nil
}

func (m *MockAdvertisement) Services() []string {
	args := m.Called()
	if v, ok := args.Get(0).([]string); ok {
		return v
	}
	return nil
}

func (m *MockAdvertisement) OverflowService() []string {
	args := m.Called()
	if v, ok := args.Get(0).([]string); ok {
		return v
	}
	return nil
}

func (m *MockAdvertisement) TxPowerLevel() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) SolicitedService() []string {
	args := m.Called()
	if v, ok := args.Get(0).([]string); ok {
		return v
	}
	return nil
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Addr() string {
	return m.Called().String(0)
}
