// Package devicebridge implements the Device Bridge: the per-device lifecycle
// that pairs one GATT Link with one PTY Endpoint and keeps them in lockstep,
// including bounded automatic reconnection.
package devicebridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/rnodeble/internal/eventbus"
	"github.com/srg/rnodeble/internal/gattlink"
	"github.com/srg/rnodeble/internal/pairing"
	"github.com/srg/rnodeble/internal/ptyio"
)

// State is the Bridge's lifecycle state.
type State int

const (
	Disconnected State = iota
	Discovering
	Connecting
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Discovering:
		return "discovering"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectCooldown    = 10 * time.Second
)

// StateChangeFunc is invoked exactly once per state transition.
type StateChangeFunc func(address string, old, new State)

// Options configures a Bridge.
type Options struct {
	Address              string
	DeviceName           string // friendly name used for the PTY symlink, e.g. "RNode-AABBCC"
	ConnectTimeout       time.Duration
	ReconnectMaxAttempts int
	ReconnectCooldown    time.Duration
	BLEWriteChunkSize    int
	DeviceWriteTimeout   time.Duration
	PTYReadBufferSize    int
	PTYWriteBufferSize   int
	Logger               *logrus.Logger
	Events               *eventbus.Bus
	Pairing              *pairing.Manager
}

// Info is a snapshot for status reporting.
type Info struct {
	Address          string
	State            State
	SymlinkPath      string
	ReconnectAttempt int
	LastError        error
}

// Bridge owns one GATT Link and one PTY Endpoint for a single RNode and pumps
// bytes directly between them.
type Bridge struct {
	opts   Options
	logger *logrus.Logger

	link *gattlink.Link
	ep   *ptyio.Endpoint

	mu               sync.Mutex
	state            State
	lastErr          error
	reconnectAttempt int
	lastAttemptAt    time.Time

	onStateChange StateChangeFunc
}

// New creates a Bridge in the Disconnected state. The GATT Link and PTY
// Endpoint are constructed but not opened until Connect.
func New(opts Options) *Bridge {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.ReconnectMaxAttempts <= 0 {
		opts.ReconnectMaxAttempts = defaultMaxReconnectAttempts
	}
	if opts.ReconnectCooldown <= 0 {
		opts.ReconnectCooldown = defaultReconnectCooldown
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if opts.DeviceName == "" {
		opts.DeviceName = opts.Address
	}

	b := &Bridge{
		opts:   opts,
		logger: logger,
		ep:     ptyio.NewEndpoint(opts.DeviceName, logger, opts.PTYReadBufferSize, opts.PTYWriteBufferSize),
		state:  Disconnected,
	}
	b.link = gattlink.New(opts.Address, gattlink.Options{
		ConnectTimeout: opts.ConnectTimeout,
		ChunkSize:      opts.BLEWriteChunkSize,
		WriteTimeout:   opts.DeviceWriteTimeout,
		Logger:         logger,
	}, gattlink.Callbacks{
		OnData:                  b.ep.Send,
		OnConnectionEstablished: b.onGattUp,
		OnConnectionLost:        b.onGattLost,
		OnPairingRequired:       b.onPairingRequired,
	})
	return b
}

// SetStateCallback registers the callback fired on every state transition.
func (b *Bridge) SetStateCallback(fn StateChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Info returns a snapshot for status reporting.
func (b *Bridge) Info() Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Info{
		Address:          b.opts.Address,
		State:            b.state,
		SymlinkPath:      b.ep.Info().SymlinkPath,
		ReconnectAttempt: b.reconnectAttempt,
		LastError:        b.lastErr,
	}
}

func (b *Bridge) transition(to State, err error) {
	b.mu.Lock()
	from := b.state
	if from == to {
		b.mu.Unlock()
		return
	}
	b.state = to
	b.lastErr = err
	cb := b.onStateChange
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"address": b.opts.Address, "from": from, "to": to}).Info("devicebridge: state transition")
	if b.opts.Events != nil {
		b.opts.Events.Publish(eventbus.Event{
			Kind:      eventbus.KindBridgeStateChanged,
			Address:   b.opts.Address,
			State:     to.String(),
			Timestamp: time.Now(),
		})
	}
	if cb != nil {
		cb(b.opts.Address, from, to)
	}
}

// Connect opens the PTY endpoint first, then dials the GATT link. If the
// GATT dial fails, the PTY endpoint is closed before Connect returns — the
// caller never observes a half-open bridge.
func (b *Bridge) Connect(ctx context.Context) error {
	b.transition(Connecting, nil)

	if err := b.ep.Open(func(err error) {
		b.logger.WithError(err).Warn("devicebridge: pty endpoint error")
		b.transition(Error, err)
	}); err != nil {
		b.transition(Error, err)
		return fmt.Errorf("devicebridge: opening pty endpoint: %w", err)
	}
	b.ep.SetDataCallback(func(data []byte) { b.link.Send(data) })

	if err := b.link.Connect(ctx); err != nil {
		_ = b.ep.Close()
		b.transition(Error, err)
		return fmt.Errorf("devicebridge: connecting gatt link: %w", err)
	}

	b.mu.Lock()
	b.reconnectAttempt = 0
	b.mu.Unlock()

	b.transition(Connected, nil)
	if b.opts.Events != nil {
		b.opts.Events.Publish(eventbus.Event{
			Kind:      eventbus.KindVirtualSerialUp,
			Address:   b.opts.Address,
			Symlink:   b.ep.Info().SymlinkPath,
			Timestamp: time.Now(),
		})
	}
	return nil
}

func (b *Bridge) onGattUp() {
	// Connect() itself drives the Connected transition once both endpoints
	// are up; nothing further to do here.
}

func (b *Bridge) onGattLost(err error) {
	b.transition(Error, err)
}

func (b *Bridge) onPairingRequired(address string) {
	if b.opts.Pairing != nil {
		b.opts.Pairing.OnPasskeyNotify(address, "")
	}
}

// Disconnect tears down the GATT link and PTY endpoint and returns the
// Bridge to Disconnected, regardless of the state it was in. Idempotent.
func (b *Bridge) Disconnect() error {
	linkErr := b.link.Disconnect()
	epErr := b.ep.Close()
	b.transition(Disconnected, nil)
	if linkErr != nil {
		return linkErr
	}
	return epErr
}

// Reconnect is admitted only from Error, and only outside the configured
// cooldown since the last attempt and within the configured attempt cap.
// Returns an error (without attempting anything) when not admitted.
func (b *Bridge) Reconnect(ctx context.Context) error {
	b.mu.Lock()
	if b.state != Error {
		b.mu.Unlock()
		return fmt.Errorf("devicebridge: reconnect not admitted from state %s", b.state)
	}
	if b.reconnectAttempt >= b.opts.ReconnectMaxAttempts {
		b.mu.Unlock()
		return fmt.Errorf("devicebridge: reconnect attempts exhausted (%d)", b.reconnectAttempt)
	}
	if since := time.Since(b.lastAttemptAt); since < b.opts.ReconnectCooldown {
		b.mu.Unlock()
		return fmt.Errorf("devicebridge: reconnect cooldown active, %s remaining", b.opts.ReconnectCooldown-since)
	}
	b.reconnectAttempt++
	b.lastAttemptAt = time.Now()
	attempt := b.reconnectAttempt
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"address": b.opts.Address, "attempt": attempt}).Info("devicebridge: reconnecting")

	_ = b.link.Disconnect()
	_ = b.ep.Close()

	return b.Connect(ctx)
}
