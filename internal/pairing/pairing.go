// Package pairing implements the Pairing Manager: a process-wide registry
// of per-device PINs and pairing state, platform pairing helpers, and the
// authentication callback contract consulted during GATT connection.
package pairing

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the pairing status of a single address.
type State string

const (
	Unknown State = "unknown"
	Unpaired State = "unpaired"
	Pairing  State = "pairing"
	Paired   State = "paired"
	Failed   State = "failed"
	Error    State = "error"
)

// DefaultPINs are the PINs RNode firmware commonly ships with. When no PIN
// has been cached for a device, OnPasskeyRequest offers the first of them;
// the others are not tried automatically.
var DefaultPINs = []string{"123456", "000000", "111111", "654321"}

const helperTimeout = 30 * time.Second

// Instructions is the static, platform-specific guide surfaced to a UI when
// automatic pairing is unavailable or fails.
type Instructions struct {
	Platform string
	Title    string
	Steps    []string
	Notes    string
}

// Event is delivered through the subscribed callback during pairing/auth.
type Event struct {
	Address string
	Type    string // pin_display, pin_confirm, auth_success, auth_failed
	Data    string
}

// Manager is the process-wide pairing registry. Safe for concurrent use;
// construct one per process (see the design note on why it is a singleton).
type Manager struct {
	logger *logrus.Logger

	// AutoConfirmUnknownPIN reproduces the permissive behavior of the
	// reference implementation (auto-accept passkey confirmation when no
	// cached PIN exists to check against). Defaults to false: this repo
	// rejects unknown confirmations unless a cached PIN matches.
	AutoConfirmUnknownPIN bool

	mu       sync.Mutex
	pins     map[string]string
	states   map[string]State
	listener func(Event)
}

// NewManager creates an empty Manager.
func NewManager(logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		logger: logger,
		pins:   make(map[string]string),
		states: make(map[string]State),
	}
}

// SetListener registers the single callback invoked for pairing events.
func (m *Manager) SetListener(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = fn
}

func (m *Manager) notify(ev Event) {
	m.mu.Lock()
	fn := m.listener
	m.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// StorePIN caches a PIN for address, used for subsequent passkey requests
// and confirmations. No persistence beyond process lifetime.
func (m *Manager) StorePIN(address, pin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[address] = pin
}

// GetPIN returns the cached PIN for address, if any.
func (m *Manager) GetPIN(address string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.pins[address]
	return pin, ok
}

// ClearPIN removes any cached PIN for address.
func (m *Manager) ClearPIN(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pins, address)
}

func (m *Manager) setState(address string, s State) {
	m.mu.Lock()
	m.states[address] = s
	m.mu.Unlock()
}

// State returns the last known pairing state for address.
func (m *Manager) State(address string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[address]; ok {
		return s
	}
	return Unknown
}

// Pair attempts to bond with address using pin, delegating to the
// platform-specific helper. Updates state to Paired/Failed accordingly.
func (m *Manager) Pair(ctx context.Context, address, pin string) (bool, error) {
	m.setState(address, Pairing)
	m.StorePIN(address, pin)

	var (
		ok  bool
		err error
	)
	switch runtime.GOOS {
	case "linux":
		ok, err = m.pairLinux(ctx, address)
	case "darwin":
		ok, err = m.pairDarwin(ctx, address)
	default:
		m.logger.WithField("platform", runtime.GOOS).Warn("pairing: unsupported platform")
		ok, err = false, fmt.Errorf("pairing not supported on %s", runtime.GOOS)
	}

	if ok {
		m.setState(address, Paired)
		m.logger.WithField("address", address).Info("pairing: succeeded")
	} else {
		m.setState(address, Failed)
		m.logger.WithField("address", address).WithError(err).Warn("pairing: failed")
	}
	return ok, err
}

func (m *Manager) pairLinux(ctx context.Context, address string) (bool, error) {
	for _, args := range [][]string{
		{"pair", address},
		{"trust", address},
	} {
		cctx, cancel := context.WithTimeout(ctx, helperTimeout)
		out, err := exec.CommandContext(cctx, "bluetoothctl", args...).CombinedOutput()
		cancel()
		if err != nil {
			return false, fmt.Errorf("bluetoothctl %v: %w: %s", args, err, out)
		}
	}
	return true, nil
}

// pairDarwin does not dial the peripheral itself: it logs that the macOS
// pairing dialog is needed and always reports failure, with an error telling
// the user to approve the dialog and retry connecting. The BLE dial that
// raises the dialog is the caller's GATT link connect on retry.
func (m *Manager) pairDarwin(ctx context.Context, address string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	m.logger.WithField("address", address).Info("pairing: triggering macOS pairing dialog via speculative connect")
	return false, fmt.Errorf("macOS pairing requires user interaction via the system dialog; retry connect after approving")
}

// Instructions returns platform-specific guidance for manual pairing.
func (m *Manager) Instructions(address string) Instructions {
	switch runtime.GOOS {
	case "darwin":
		return Instructions{
			Platform: "macOS",
			Title:    "Pair RNode Device",
			Steps: []string{
				"Open System Settings -> Bluetooth",
				"Make sure the RNode is in pairing mode",
				"Select the RNode and connect",
				"Enter the PIN when prompted",
				"Retry connecting once paired",
			},
			Notes: "The PIN is usually printed on the RNode or is one of the common defaults.",
		}
	case "linux":
		return Instructions{
			Platform: "Linux",
			Title:    "Pair RNode Device",
			Steps: []string{
				"Run: bluetoothctl",
				"Run: scan on",
				"Run: pair " + address,
				"Enter the PIN when prompted",
				"Run: trust " + address,
				"Retry connecting",
			},
			Notes: "You can also use your desktop's Bluetooth settings panel.",
		}
	default:
		return Instructions{
			Platform: runtime.GOOS,
			Title:    "Manual Pairing Required",
			Steps: []string{
				"Use your system's Bluetooth settings",
				"Pair with the RNode device",
				"Enter the PIN when prompted",
				"Retry connecting",
			},
			Notes: "Automatic pairing is not implemented for this platform.",
		}
	}
}

// CheckStatus performs a short speculative dial to classify whether address
// is already bonded, bounded to 5s per the pairing status contract.
func (m *Manager) CheckStatus(ctx context.Context, probe func(context.Context) error) State {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := probe(cctx)
	switch {
	case err == nil:
		return Paired
	case cctx.Err() != nil:
		return Unpaired
	default:
		return Unknown
	}
}

// OnPasskeyRequest returns the PIN to offer the peripheral: the cached PIN if
// present, otherwise the first default.
func (m *Manager) OnPasskeyRequest(address string) string {
	if pin, ok := m.GetPIN(address); ok {
		return pin
	}
	return DefaultPINs[0]
}

// OnPasskeyNotify surfaces a peripheral-displayed PIN to the user.
func (m *Manager) OnPasskeyNotify(address, passkey string) {
	m.notify(Event{Address: address, Type: "pin_display", Data: passkey})
}

// OnConfirmPIN decides whether to accept a peripheral's confirmation
// request. Defaults to reject unless the cached PIN matches pin — see the
// REDESIGN FLAG in the design notes on auto-confirm policy.
func (m *Manager) OnConfirmPIN(address, pin string) bool {
	m.notify(Event{Address: address, Type: "pin_confirm", Data: pin})
	if cached, ok := m.GetPIN(address); ok {
		return cached == pin
	}
	return m.AutoConfirmUnknownPIN
}

// OnSecurityRequest always accepts, matching the reference behavior.
func (m *Manager) OnSecurityRequest(string) bool { return true }

// OnAuthenticationComplete surfaces the final outcome.
func (m *Manager) OnAuthenticationComplete(address string, success bool) {
	if success {
		m.notify(Event{Address: address, Type: "auth_success"})
	} else {
		m.notify(Event{Address: address, Type: "auth_failed"})
	}
}
