package gattlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateStringCoversAllValues(t *testing.T) {
	cases := map[State]string{
		Idle:          "idle",
		Connecting:    "connecting",
		Connected:     "connected",
		Disconnecting: "disconnecting",
		State(99):     "unknown",
	}
	for s, want := range cases {
		assert.Equal(t, want, s.String())
	}
}

func TestNewDefaultsConnectTimeout(t *testing.T) {
	l := New("AA:BB:CC:DD:EE:FF", Options{}, Callbacks{})
	assert.Equal(t, 30*time.Second, l.opts.ConnectTimeout)
	assert.Equal(t, Idle, l.State())
}

func TestNewPreservesExplicitConnectTimeout(t *testing.T) {
	l := New("AA:BB:CC:DD:EE:FF", Options{ConnectTimeout: 5 * time.Second}, Callbacks{})
	assert.Equal(t, 5*time.Second, l.opts.ConnectTimeout)
}

func TestSendFailsWhenNotConnected(t *testing.T) {
	l := New("AA:BB:CC:DD:EE:FF", Options{}, Callbacks{})
	assert.False(t, l.Send([]byte("hello")))
}

func TestDisconnectBeforeConnectIsIdempotentNoop(t *testing.T) {
	l := New("AA:BB:CC:DD:EE:FF", Options{}, Callbacks{})
	assert.NoError(t, l.Disconnect())
	assert.Equal(t, Idle, l.State())
	assert.NoError(t, l.Disconnect())
}

func TestOnLostIgnoredWhenNotConnected(t *testing.T) {
	l := New("AA:BB:CC:DD:EE:FF", Options{}, Callbacks{})
	called := false
	l.SetCallbacks(Callbacks{OnConnectionLost: func(error) { called = true }})

	l.onLost(assert.AnError)
	assert.False(t, called)
	assert.Equal(t, Idle, l.State())
}

func TestHandleNotificationRecordIgnoresMissingTXData(t *testing.T) {
	l := New("AA:BB:CC:DD:EE:FF", Options{}, Callbacks{})
	called := false
	l.SetCallbacks(Callbacks{OnData: func([]byte) { called = true }})

	l.handleNotificationRecord(nil)
	assert.False(t, called)
}
