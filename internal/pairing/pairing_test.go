package pairing

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorePINGetPINClearPIN(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.GetPIN("AA:BB")
	assert.False(t, ok)

	m.StorePIN("AA:BB", "123456")
	pin, ok := m.GetPIN("AA:BB")
	assert.True(t, ok)
	assert.Equal(t, "123456", pin)

	m.ClearPIN("AA:BB")
	_, ok = m.GetPIN("AA:BB")
	assert.False(t, ok)
}

func TestStateDefaultsToUnknown(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, Unknown, m.State("AA:BB"))
}

func TestOnPasskeyRequestPrefersCachedPIN(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, DefaultPINs[0], m.OnPasskeyRequest("AA:BB"))

	m.StorePIN("AA:BB", "999999")
	assert.Equal(t, "999999", m.OnPasskeyRequest("AA:BB"))
}

func TestOnConfirmPINRejectsUnknownByDefault(t *testing.T) {
	m := NewManager(nil)
	assert.False(t, m.OnConfirmPIN("AA:BB", "123456"))
}

func TestOnConfirmPINAutoConfirmOptIn(t *testing.T) {
	m := NewManager(nil)
	m.AutoConfirmUnknownPIN = true
	assert.True(t, m.OnConfirmPIN("AA:BB", "123456"))
}

func TestOnConfirmPINMatchesCachedPIN(t *testing.T) {
	m := NewManager(nil)
	m.StorePIN("AA:BB", "123456")
	assert.True(t, m.OnConfirmPIN("AA:BB", "123456"))
	assert.False(t, m.OnConfirmPIN("AA:BB", "000000"))
}

func TestOnSecurityRequestAlwaysAccepts(t *testing.T) {
	m := NewManager(nil)
	assert.True(t, m.OnSecurityRequest("AA:BB"))
}

func TestNotifyCallbacksFireListener(t *testing.T) {
	m := NewManager(nil)
	events := make(chan Event, 8)
	m.SetListener(func(ev Event) { events <- ev })

	m.OnPasskeyNotify("AA:BB", "654321")
	m.OnAuthenticationComplete("AA:BB", true)
	m.OnAuthenticationComplete("AA:BB", false)
	m.OnConfirmPIN("AA:BB", "123456")

	kinds := map[string]bool{}
	for i := 0; i < 4; i++ {
		ev := <-events
		kinds[ev.Type] = true
	}
	assert.True(t, kinds["pin_display"])
	assert.True(t, kinds["auth_success"])
	assert.True(t, kinds["auth_failed"])
	assert.True(t, kinds["pin_confirm"])
}

func TestInstructionsMatchesRuntimeGOOS(t *testing.T) {
	m := NewManager(nil)
	inst := m.Instructions("AA:BB:CC:DD:EE:FF")
	switch runtime.GOOS {
	case "darwin":
		assert.Equal(t, "macOS", inst.Platform)
	case "linux":
		assert.Equal(t, "Linux", inst.Platform)
		for _, step := range inst.Steps {
			if step == "Run: pair AA:BB:CC:DD:EE:FF" {
				return
			}
		}
		t.Fatal("expected address-specific pair step")
	default:
		assert.Equal(t, runtime.GOOS, inst.Platform)
	}
}

func TestCheckStatusPairedOnProbeSuccess(t *testing.T) {
	m := NewManager(nil)
	state := m.CheckStatus(context.Background(), func(context.Context) error { return nil })
	assert.Equal(t, Paired, state)
}

func TestCheckStatusUnpairedOnTimeout(t *testing.T) {
	m := NewManager(nil)
	state := m.CheckStatus(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.Equal(t, Unpaired, state)
}

func TestCheckStatusUnknownOnOtherError(t *testing.T) {
	m := NewManager(nil)
	state := m.CheckStatus(context.Background(), func(context.Context) error {
		return errors.New("gatt write failed")
	})
	assert.Equal(t, Unknown, state)
}

func TestPairUpdatesStateOnUnsupportedPlatform(t *testing.T) {
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		t.Skip("only exercises the unsupported-platform branch")
	}
	m := NewManager(nil)
	ok, err := m.Pair(context.Background(), "AA:BB", "123456")
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, Failed, m.State("AA:BB"))
}
