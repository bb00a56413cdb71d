package ptyio

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultEndpointReadCap/WriteCap size the ring buffers backing each PTY
// endpoint; generous enough to absorb a burst of LoRa frames without
// dropping bytes at typical serial rates.
const (
	DefaultEndpointReadCap  = 8192
	DefaultEndpointWriteCap = 8192
)

// EndpointInfo is the observability snapshot returned by Endpoint.Info().
type EndpointInfo struct {
	DeviceName  string
	SlavePath   string
	SymlinkPath string
	Open        bool
	Stats       Stats
}

// Endpoint owns one PTY pair plus the friendly symlink that makes it
// discoverable, and the open/close connection callback the bare PTY type
// does not provide.
type Endpoint struct {
	deviceName  string
	symlinkPath string
	logger      *logrus.Logger
	readCap     int
	writeCap    int

	onConnectionChange func(open bool)

	mu     sync.Mutex
	pty    PTY
	opened bool
}

// NewEndpoint creates an Endpoint for the given friendly device name (e.g.
// "RNode-AABBCCDDEE01"); the symlink is created at /tmp/cu.<deviceName>.
// A readCap or writeCap of 0 falls back to DefaultEndpointReadCap/WriteCap.
func NewEndpoint(deviceName string, logger *logrus.Logger, readCap, writeCap int) *Endpoint {
	if logger == nil {
		logger = noopLogger
	}
	if readCap <= 0 {
		readCap = DefaultEndpointReadCap
	}
	if writeCap <= 0 {
		writeCap = DefaultEndpointWriteCap
	}
	return &Endpoint{
		deviceName:  deviceName,
		symlinkPath: fmt.Sprintf("/tmp/cu.%s", deviceName),
		logger:      logger,
		readCap:     readCap,
		writeCap:    writeCap,
	}
}

// SetConnectionCallback registers a callback invoked with true on Open
// success and false on Close.
func (e *Endpoint) SetConnectionCallback(fn func(open bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onConnectionChange = fn
}

// Open allocates the PTY pair, (re)creates the symlink, and starts the
// read/write pumps. Returns an error if the PTY cannot be allocated or the
// symlink path cannot be (re)created.
func (e *Endpoint) Open(onError ErrorCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opened {
		return fmt.Errorf("ptyio: endpoint %s already open", e.deviceName)
	}

	p, err := NewPtyWithOptions(&PTYOptions{
		ReadCap:  e.readCap,
		WriteCap: e.writeCap,
		Logger:   e.logger,
		OnError:  onError,
	})
	if err != nil {
		return fmt.Errorf("ptyio: open %s: %w", e.deviceName, err)
	}

	if err := e.relinkLocked(p.TTYName()); err != nil {
		_ = p.Close()
		return err
	}

	e.pty = p
	e.opened = true

	if e.onConnectionChange != nil {
		e.onConnectionChange(true)
	}
	return nil
}

// relinkLocked removes any stale symlink at e.symlinkPath and points it at
// slavePath. Caller must hold e.mu.
func (e *Endpoint) relinkLocked(slavePath string) error {
	if _, err := os.Lstat(e.symlinkPath); err == nil {
		if err := os.Remove(e.symlinkPath); err != nil {
			return fmt.Errorf("ptyio: removing stale symlink %s: %w", e.symlinkPath, err)
		}
	}
	if err := os.Symlink(slavePath, e.symlinkPath); err != nil {
		return fmt.Errorf("ptyio: creating symlink %s -> %s: %w", e.symlinkPath, slavePath, err)
	}
	return nil
}

// SetDataCallback registers fn to be invoked with each chunk read from the
// client side of the PTY. fn must be cheap and non-blocking.
func (e *Endpoint) SetDataCallback(fn func([]byte)) {
	e.mu.Lock()
	p := e.pty
	e.mu.Unlock()
	if p == nil {
		return
	}
	if fn == nil {
		p.SetReadCallback(nil)
		return
	}
	p.SetReadCallback(func(data []byte) { fn(data) })
}

// Send enqueues bytes for delivery to the PTY client. Returns false when the
// endpoint is not open or the write queue rejects the data outright.
func (e *Endpoint) Send(data []byte) bool {
	e.mu.Lock()
	p := e.pty
	e.mu.Unlock()
	if p == nil {
		return false
	}
	_, err := p.Write(data)
	return err == nil
}

// Info returns a snapshot for diagnostics/status reporting.
func (e *Endpoint) Info() EndpointInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := EndpointInfo{
		DeviceName:  e.deviceName,
		SymlinkPath: e.symlinkPath,
		Open:        e.opened,
	}
	if e.pty != nil {
		info.SlavePath = e.pty.TTYName()
		info.Stats = e.pty.Stats()
	}
	return info
}

// Close tears down the pumps, closes the PTY fds and removes the symlink if
// it still points at this endpoint's slave path. Idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	p := e.pty
	wasOpen := e.opened
	e.pty = nil
	e.opened = false
	e.mu.Unlock()

	if p == nil {
		return nil
	}

	slavePath := p.TTYName()
	err := p.Close()

	if target, lerr := os.Readlink(e.symlinkPath); lerr == nil && target == slavePath {
		_ = os.Remove(e.symlinkPath)
	}

	if wasOpen {
		e.mu.Lock()
		cb := e.onConnectionChange
		e.mu.Unlock()
		if cb != nil {
			cb(false)
		}
	}
	return err
}
