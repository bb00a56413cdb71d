package devicebridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBridgeStartsDisconnected(t *testing.T) {
	b := New(Options{Address: "AA:BB:CC:DD:EE:01", DeviceName: "RNode-TEST01"})
	assert.Equal(t, Disconnected, b.State())
	assert.Equal(t, "disconnected", b.State().String())

	info := b.Info()
	assert.Equal(t, "AA:BB:CC:DD:EE:01", info.Address)
	assert.Equal(t, "/tmp/cu.RNode-TEST01", info.SymlinkPath)
	assert.Equal(t, 0, info.ReconnectAttempt)
}

func TestReconnectRejectedOutsideErrorState(t *testing.T) {
	b := New(Options{Address: "AA:BB:CC:DD:EE:02", DeviceName: "RNode-TEST02"})
	err := b.Reconnect(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not admitted from state")
}

func TestStateStringCoversAllValues(t *testing.T) {
	cases := map[State]string{
		Disconnected: "disconnected",
		Discovering:  "discovering",
		Connecting:   "connecting",
		Connected:    "connected",
		Error:        "error",
		State(99):    "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestStateChangeCallbackFiresOnce(t *testing.T) {
	b := New(Options{Address: "AA:BB:CC:DD:EE:03", DeviceName: "RNode-TEST03"})

	var transitions []State
	b.SetStateCallback(func(address string, old, new State) {
		assert.Equal(t, "AA:BB:CC:DD:EE:03", address)
		transitions = append(transitions, new)
	})

	b.transition(Connecting, nil)
	b.transition(Connecting, nil) // repeated transition to the same state is a no-op
	b.transition(Error, assert.AnError)

	assert.Equal(t, []State{Connecting, Error}, transitions)
	assert.ErrorIs(t, b.Info().LastError, assert.AnError)
}
