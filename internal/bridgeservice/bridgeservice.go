// Package bridgeservice implements the Bridge Service: the process-wide
// orchestrator that owns discovery, the set of active device bridges, and
// the control surface used by the CLI.
package bridgeservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/rnodeble/internal/devicebridge"
	"github.com/srg/rnodeble/internal/discovery"
	"github.com/srg/rnodeble/internal/eventbus"
	"github.com/srg/rnodeble/internal/pairing"
	"github.com/srg/rnodeble/internal/rnodeerr"
	"github.com/srg/rnodeble/pkg/config"
)

// Status is a full snapshot of the service for the `status` operation.
type Status struct {
	Running    bool
	Uptime     time.Duration
	Discovered []discovery.Device
	Bridges    []devicebridge.Info
}

// StartOptions configures the discovery loop started by Start.
type StartOptions struct {
	AutoDiscover      bool
	DiscoveryInterval time.Duration // 0 keeps the configured default
}

// DefaultStartOptions enables auto-discovery at the configured interval.
func DefaultStartOptions() StartOptions {
	return StartOptions{AutoDiscover: true}
}

// Service owns the discovery loop, the monitor loop, and every active
// device bridge for the process lifetime.
type Service struct {
	cfg    *config.Config
	logger *logrus.Logger

	discovery *discovery.Discovery
	pairing   *pairing.Manager
	events    *eventbus.Bus

	mu         sync.Mutex
	bridges    map[string]*devicebridge.Bridge
	running    bool
	startedAt  time.Time
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	listeners  map[int]func(eventbus.Event)
	nextListenerID int
}

// New creates a Service. cfg may be nil, in which case config.DefaultConfig
// is used.
func New(cfg *config.Config, logger *logrus.Logger) *Service {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = cfg.NewLogger()
	}
	events := eventbus.NewBus(cfg.EventBusCapacity)
	return &Service{
		cfg:       cfg,
		logger:    logger,
		discovery: discovery.New(logger, events),
		pairing:   pairing.NewManager(logger),
		events:    events,
		bridges:   make(map[string]*devicebridge.Bridge),
		listeners: make(map[int]func(eventbus.Event)),
	}
}

// Events returns a channel of manager/discovery/bridge lifecycle
// notifications, fed by the same dispatcher as SubscribeEvents. The channel
// is never closed by the Service; it stops receiving once Stop cancels the
// dispatch loop. Events published before Start are not seen.
func (s *Service) Events() <-chan eventbus.Event {
	ch := make(chan eventbus.Event, s.cfg.EventBusCapacity)
	s.SubscribeEvents(func(ev eventbus.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch
}

// SubscribeEvents registers an additional listener on the event bus and
// returns an unsubscribe handle. Delivery is best-effort: a slow or blocked
// listener does not stall others, and events may be dropped under load the
// same way the underlying bus is lossy.
func (s *Service) SubscribeEvents(fn func(eventbus.Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) dispatchLoop(ctx context.Context, ch <-chan eventbus.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.mu.Lock()
			fns := make([]func(eventbus.Event), 0, len(s.listeners))
			for _, fn := range s.listeners {
				fns = append(fns, fn)
			}
			s.mu.Unlock()
			for _, fn := range fns {
				fn(ev)
			}
		}
	}
}

// Start launches the discovery and monitor loops per opts. Not idempotent:
// calling Start twice without an intervening Stop returns an error.
func (s *Service) Start(ctx context.Context, opts StartOptions) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("bridgeservice: already running")
	}
	if opts.DiscoveryInterval > 0 {
		s.cfg.DiscoveryInterval = opts.DiscoveryInterval
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.dispatchLoop(loopCtx, s.events.Subscribe())

	if opts.AutoDiscover {
		s.wg.Add(1)
		go s.discoveryLoop(loopCtx)
	}
	s.wg.Add(1)
	go s.monitorLoop(loopCtx)

	s.events.Publish(eventbus.Event{Kind: eventbus.KindManagerStarted, Timestamp: time.Now()})
	s.logger.Info("bridgeservice: started")
	return nil
}

// Stop cancels the background loops and disconnects every active bridge.
// Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	bridges := make([]*devicebridge.Bridge, 0, len(s.bridges))
	for _, b := range s.bridges {
		bridges = append(bridges, b)
	}
	s.mu.Unlock()

	var shutdown sync.WaitGroup
	for _, b := range bridges {
		shutdown.Add(1)
		go func(b *devicebridge.Bridge) {
			defer shutdown.Done()
			if err := b.Disconnect(); err != nil {
				s.logger.WithError(err).Warn("bridgeservice: bridge disconnect failed during stop")
			}
		}(b)
	}
	shutdown.Wait()

	s.events.Publish(eventbus.Event{Kind: eventbus.KindManagerStopped, Timestamp: time.Now()})
	s.logger.Info("bridgeservice: stopped")
}

func (s *Service) discoveryLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.DiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx, nil); err != nil {
				s.logger.WithError(err).Warn("bridgeservice: discovery pass failed")
			}
		}
	}
}

func (s *Service) monitorLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			bridges := make([]*devicebridge.Bridge, 0, len(s.bridges))
			for _, b := range s.bridges {
				bridges = append(bridges, b)
			}
			s.mu.Unlock()

			for _, b := range bridges {
				if b.State() != devicebridge.Error {
					continue
				}
				if err := b.Reconnect(ctx); err != nil {
					s.logger.WithError(err).Debug("bridgeservice: reconnect not admitted")
				}
			}
		}
	}
}

// Scan runs a single discovery pass and returns every compatible device
// sighted so far. The pass lasts the configured discovery window.
func (s *Service) Scan(ctx context.Context, progress discovery.ProgressCallback) (map[string]*discovery.Device, error) {
	opts := &discovery.ScanOptions{Duration: s.cfg.DiscoveryWindow, DuplicateFilter: true}
	return s.discovery.Scan(ctx, opts, progress)
}

// ListDiscovered returns every device sighted since the service started,
// without running a new scan.
func (s *Service) ListDiscovered() map[string]*discovery.Device {
	return s.discovery.List()
}

// Connect creates (if necessary) and connects the bridge for address. If a
// bridge already exists and is connected, Connect is a no-op. A prior
// discovery sighting is required; if address has never been seen, Connect
// runs a short targeted scan before giving up.
func (s *Service) Connect(ctx context.Context, address, deviceName string) error {
	if _, seen := s.discovery.Get(address); !seen {
		opts := &discovery.ScanOptions{Duration: s.cfg.DiscoveryWindow, DuplicateFilter: true, AllowList: []string{address}}
		if _, err := s.discovery.Scan(ctx, opts, nil); err != nil {
			return fmt.Errorf("bridgeservice: scanning for %s: %w", address, err)
		}
		if _, seen := s.discovery.Get(address); !seen {
			return rnodeerr.New(rnodeerr.KindNotFound, "bridgeservice.Connect", fmt.Errorf("%s has not been discovered", address))
		}
	}

	s.mu.Lock()
	b, ok := s.bridges[address]
	if !ok {
		b = devicebridge.New(devicebridge.Options{
			Address:              address,
			DeviceName:           deviceName,
			ConnectTimeout:       s.cfg.ConnectTimeout,
			ReconnectMaxAttempts: s.cfg.ReconnectMaxAttempts,
			ReconnectCooldown:    s.cfg.ReconnectCooldown,
			BLEWriteChunkSize:    s.cfg.BLEWriteChunkSize,
			DeviceWriteTimeout:   s.cfg.DeviceTimeout,
			PTYReadBufferSize:    s.cfg.PTYReadBufferSize,
			PTYWriteBufferSize:   s.cfg.PTYWriteBufferSize,
			Logger:               s.logger,
			Events:               s.events,
			Pairing:              s.pairing,
		})
		s.bridges[address] = b
	}
	s.mu.Unlock()

	if b.State() == devicebridge.Connected {
		return nil
	}
	if err := b.Connect(ctx); err != nil {
		return err
	}
	s.discovery.MarkConnected(address, true)
	return nil
}

// Disconnect tears down the bridge for address, if one exists.
func (s *Service) Disconnect(address string) error {
	s.mu.Lock()
	b, ok := s.bridges[address]
	s.mu.Unlock()
	if !ok {
		return rnodeerr.New(rnodeerr.KindNotFound, "bridgeservice.Disconnect", fmt.Errorf("no bridge for %s", address))
	}
	err := b.Disconnect()
	s.discovery.MarkConnected(address, false)
	return err
}

// ListConnected returns the address of every bridge currently Connected.
func (s *Service) ListConnected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.bridges))
	for addr, b := range s.bridges {
		if b.State() == devicebridge.Connected {
			out = append(out, addr)
		}
	}
	return out
}

// VirtualSerialPorts returns the symlink path for every bridge that has one
// open, keyed by address.
func (s *Service) VirtualSerialPorts() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for addr, b := range s.bridges {
		if info := b.Info(); info.SymlinkPath != "" && info.State == devicebridge.Connected {
			out[addr] = info.SymlinkPath
		}
	}
	return out
}

// Info returns the current lifecycle snapshot for a single bridge.
func (s *Service) Info(address string) (devicebridge.Info, error) {
	s.mu.Lock()
	b, ok := s.bridges[address]
	s.mu.Unlock()
	if !ok {
		return devicebridge.Info{}, rnodeerr.New(rnodeerr.KindNotFound, "bridgeservice.Info", fmt.Errorf("no bridge for %s", address))
	}
	return b.Info(), nil
}

// Status returns a full snapshot: discovered devices plus every bridge's
// lifecycle info.
func (s *Service) Status() Status {
	s.mu.Lock()
	running := s.running
	var uptime time.Duration
	if running {
		uptime = time.Since(s.startedAt)
	}
	bridges := make([]devicebridge.Info, 0, len(s.bridges))
	for _, b := range s.bridges {
		bridges = append(bridges, b.Info())
	}
	s.mu.Unlock()

	discovered := s.discovery.List()
	devs := make([]discovery.Device, 0, len(discovered))
	for _, d := range discovered {
		devs = append(devs, *d)
	}

	return Status{Running: running, Uptime: uptime, Discovered: devs, Bridges: bridges}
}
