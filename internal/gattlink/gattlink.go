// Package gattlink implements the GATT Link: one BLE connection to one
// Nordic UART peripheral, exposing a duplex byte stream plus lifecycle
// callbacks to whatever owns the link (the device bridge).
package gattlink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/rnodeble/internal/device"
	"github.com/srg/rnodeble/internal/devicefactory"
	goble "github.com/srg/rnodeble/internal/device/go-ble"
	"github.com/srg/rnodeble/internal/rnodeerr"
)

// Nordic UART Service UUIDs, normalized (no dashes) the way the go-ble layer
// compares them.
const (
	ServiceUUID = "6e400001b5a3f393e0a9e50e24dcca9e"
	RxCharUUID  = "6e400002b5a3f393e0a9e50e24dcca9e"
	TxCharUUID  = "6e400003b5a3f393e0a9e50e24dcca9e"
)

// DefaultChunkSize and ChunkDelay mirror the conservative MTU assumption the
// GATT plumbing already uses for every BLE write.
const (
	DefaultChunkSize = goble.DefaultBLEWriteChunkSize
	ChunkDelay       = goble.DefaultBLEWriteDelay
)

const (
	monitorInterval    = time.Second
	defaultWriteTimeout = 5 * time.Second
	writeRetryDelay    = 200 * time.Millisecond
)

// State is the GATT Link's connection state.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Callbacks bundles the lifecycle hooks a Link invokes.
type Callbacks struct {
	OnData                func([]byte)
	OnConnectionEstablished func()
	OnConnectionLost       func(err error)
	OnPairingRequired      func(address string)
}

// Options configures a Link.
type Options struct {
	ConnectTimeout time.Duration
	ChunkSize      int           // floor for writeFrame's chunk size; 0 falls back to DefaultChunkSize
	WriteTimeout   time.Duration // per-chunk write deadline; 0 falls back to defaultWriteTimeout
	Logger         *logrus.Logger
}

// Link owns one BLE connection to one Nordic UART peripheral.
type Link struct {
	address string
	opts    Options
	logger  *logrus.Logger
	cb      Callbacks

	mu    sync.Mutex
	state atomic.Int32

	dev  device.Device
	conn device.Connection

	outgoing chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Link for the given address. Callbacks may be set before
// Connect via SetCallbacks.
func New(address string, opts Options, cb Callbacks) *Link {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	l := &Link{
		address:  address,
		opts:     opts,
		logger:   logger,
		cb:       cb,
		outgoing: make(chan []byte, 64),
	}
	l.state.Store(int32(Idle))
	return l
}

// SetCallbacks replaces the lifecycle callbacks.
func (l *Link) SetCallbacks(cb Callbacks) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cb = cb
}

// State returns the current connection state.
func (l *Link) State() State {
	return State(l.state.Load())
}

func (l *Link) setState(s State) {
	l.state.Store(int32(s))
}

// Connect dials the peripheral, discovers the Nordic UART service, subscribes
// to TX notifications and starts the outgoing pump and connection monitor.
func (l *Link) Connect(ctx context.Context) error {
	l.setState(Connecting)

	dev := devicefactory.NewDevice(l.address, l.logger)

	cctx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	defer cancel()

	connOpts := &device.ConnectOptions{
		Address:        l.address,
		ConnectTimeout: l.opts.ConnectTimeout,
		Services: []device.SubscribeOptions{
			{Service: ServiceUUID, Characteristics: []string{RxCharUUID, TxCharUUID}},
		},
	}

	if err := dev.Connect(cctx, connOpts); err != nil {
		l.setState(Idle)
		if rnodeerr.ClassifyAuthFailure(err.Error()) {
			if l.cb.OnPairingRequired != nil {
				l.cb.OnPairingRequired(l.address)
			}
			return rnodeerr.New(rnodeerr.KindAuthRequired, "gattlink.Connect", err)
		}
		return rnodeerr.Classify("gattlink.Connect", err)
	}

	conn := dev.GetConnection()
	if conn == nil {
		_ = dev.Disconnect()
		l.setState(Idle)
		return rnodeerr.New(rnodeerr.KindProtocol, "gattlink.Connect", fmt.Errorf("no connection after dial"))
	}

	rxChar, err := conn.GetCharacteristic(ServiceUUID, RxCharUUID)
	if err != nil {
		_ = dev.Disconnect()
		l.setState(Idle)
		return rnodeerr.New(rnodeerr.KindProtocol, "gattlink.Connect", err)
	}
	if props := rxChar.GetProperties(); props.Write() == nil && props.WriteWithoutResponse() == nil {
		_ = dev.Disconnect()
		l.setState(Idle)
		return rnodeerr.New(rnodeerr.KindProtocol, "gattlink.Connect",
			fmt.Errorf("RX characteristic %s lacks write/write-without-response property", RxCharUUID))
	}
	if _, err := conn.GetCharacteristic(ServiceUUID, TxCharUUID); err != nil {
		_ = dev.Disconnect()
		l.setState(Idle)
		return rnodeerr.New(rnodeerr.KindProtocol, "gattlink.Connect", err)
	}

	l.mu.Lock()
	l.dev = dev
	l.conn = conn
	l.mu.Unlock()

	subErr := conn.Subscribe(
		[]*device.SubscribeOptions{{Service: ServiceUUID, Characteristics: []string{TxCharUUID}}},
		device.StreamEveryUpdate, 0, l.handleNotificationRecord,
	)
	if subErr != nil {
		_ = dev.Disconnect()
		l.setState(Idle)
		return rnodeerr.New(rnodeerr.KindTransport, "gattlink.Connect", subErr)
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.wg.Add(2)
	go l.outgoingPump()
	go l.connectionMonitor()

	l.setState(Connected)
	if l.cb.OnConnectionEstablished != nil {
		l.cb.OnConnectionEstablished()
	}
	return nil
}

func (l *Link) handleNotificationRecord(rec *device.Record) {
	if rec == nil {
		return
	}
	data, ok := rec.Values[TxCharUUID]
	if !ok || len(data) == 0 {
		return
	}
	l.mu.Lock()
	cb := l.cb.OnData
	l.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// Send enqueues a frame for transmission. Returns false when not connected.
func (l *Link) Send(data []byte) bool {
	if l.State() != Connected {
		return false
	}
	select {
	case l.outgoing <- data:
		return true
	default:
		l.logger.Warn("gattlink: outgoing queue full, dropping frame")
		return false
	}
}

func (l *Link) outgoingPump() {
	defer l.wg.Done()
	for {
		select {
		case <-l.ctx.Done():
			return
		case frame := <-l.outgoing:
			if err := l.writeFrame(frame); err != nil {
				l.logger.WithError(err).Warn("gattlink: frame write failed, treating as lost")
				l.onLost(err)
				return
			}
		}
	}
}

// writeChunkSize raises the write chunk size to the negotiated ATT_MTU minus
// the 3-byte ATT header when the connection exposes one, and falls back to
// the configured floor (Options.ChunkSize) when the stack never negotiated
// an MTU.
func (l *Link) writeChunkSize(conn device.Connection) int {
	if mtu := conn.NegotiatedMTU(); mtu > 3 {
		if size := mtu - 3; size > l.opts.ChunkSize {
			return size
		}
	}
	return l.opts.ChunkSize
}

// writeFrame segments a frame into MTU-sized chunks and writes each to the
// RX characteristic. A chunk whose write fails is retried once after
// writeRetryDelay; a second failure aborts the rest of the frame. Chunks
// already written are not re-sent.
func (l *Link) writeFrame(frame []byte) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	rx, err := conn.GetCharacteristic(ServiceUUID, RxCharUUID)
	if err != nil {
		return err
	}

	withResponse := true
	if props := rx.GetProperties(); props != nil && props.WriteWithoutResponse() != nil && props.WriteWithoutResponse().Value() != 0 {
		withResponse = false
	}

	chunkSize := l.writeChunkSize(conn)
	for offset := 0; offset < len(frame); offset += chunkSize {
		end := offset + chunkSize
		if end > len(frame) {
			end = len(frame)
		}
		chunk := frame[offset:end]

		if err := rx.Write(chunk, withResponse, l.opts.WriteTimeout); err != nil {
			time.Sleep(writeRetryDelay)
			if err2 := rx.Write(chunk, withResponse, l.opts.WriteTimeout); err2 != nil {
				return err2
			}
		}
		if end < len(frame) {
			time.Sleep(ChunkDelay)
		}
	}
	return nil
}

func (l *Link) connectionMonitor() {
	defer l.wg.Done()
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			dev := l.dev
			l.mu.Unlock()
			if dev != nil && !dev.IsConnected() {
				l.onLost(rnodeerr.New(rnodeerr.KindTransport, "gattlink.monitor", fmt.Errorf("peripheral reports not connected")))
				return
			}
		}
	}
}

func (l *Link) onLost(err error) {
	if l.State() != Connected {
		return
	}
	l.setState(Idle)
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Lock()
	cb := l.cb.OnConnectionLost
	l.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Disconnect tears down the link. Idempotent: safe to call after a
// connection-lost callback has already moved the state to Idle, so any
// device handle left by Connect is always released.
func (l *Link) Disconnect() error {
	l.setState(Disconnecting)
	if l.cancel != nil {
		l.cancel()
		l.wg.Wait()
	}

	l.mu.Lock()
	dev := l.dev
	l.dev, l.conn = nil, nil
	l.mu.Unlock()

	var err error
	if dev != nil {
		err = dev.Disconnect()
	}
	l.setState(Idle)
	return err
}
