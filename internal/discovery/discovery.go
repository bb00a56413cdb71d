// Package discovery implements active BLE scanning for RNode peripherals:
// devices advertising the Nordic UART service, or whose local name matches
// one of the known RNode naming patterns.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/rnodeble/internal/device"
	"github.com/srg/rnodeble/internal/devicefactory"
	"github.com/srg/rnodeble/internal/eventbus"
	"github.com/srg/rnodeble/internal/gattlink"
)

// nameTokens are case-folded substrings of a local name that mark a
// peripheral as a plausible RNode even without the Nordic UART service
// appearing in its advertisement (some firmware omits 128-bit services from
// the scan response to save space).
var nameTokens = []string{"rnode", "reticulum", "lora"}

// Device is a snapshot of a discovered peripheral.
type Device struct {
	Address     string
	DisplayName string
	LastRSSI    int
	Connected   bool
}

// ScanOptions configures a single scan pass.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	AllowList       []string
	BlockList       []string
	ServiceUUIDOnly bool // require the Nordic UART service UUID; skip the name-substring fallback
}

// DefaultScanOptions mirrors the discovery loop's default 5s window.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{Duration: 5 * time.Second, DuplicateFilter: true}
}

// ProgressCallback is invoked as the scan moves through phases.
type ProgressCallback func(phase string)

// Discovery owns the discovered-device cache for the process lifetime.
type Discovery struct {
	devices *hashmap.Map[string, *Device]
	events  *eventbus.Bus
	logger  *logrus.Logger
	scanMu  sync.Mutex // serializes Scan
}

// New creates a Discovery with an empty cache.
func New(logger *logrus.Logger, events *eventbus.Bus) *Discovery {
	if logger == nil {
		logger = logrus.New()
	}
	return &Discovery{
		devices: hashmap.New[string, *Device](),
		events:  events,
		logger:  logger,
	}
}

// Scan runs one active scan pass, returning every device retained by the
// compatibility filter. Invocations are serialized: a call made while another
// pass is running (the discovery loop, an on-demand scan, or Connect's
// targeted scan) waits for that pass to finish.
func (d *Discovery) Scan(ctx context.Context, opts *ScanOptions, progress ProgressCallback) (map[string]*Device, error) {
	d.scanMu.Lock()
	defer d.scanMu.Unlock()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progress == nil {
		progress = func(string) {}
	}

	progress("scanning")
	d.logger.WithField("duration", opts.Duration).Info("discovery: starting scan")

	scanDev, err := devicefactory.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("discovery: creating scan device: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	err = scanDev.Scan(sctx, opts.DuplicateFilter, func(adv device.Advertisement) {
		d.handleAdvertisement(adv, opts)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("discovery: scan failed: %w", err)
	}

	progress("processing")

	out := make(map[string]*Device)
	d.devices.Range(func(addr string, dev *Device) bool {
		out[addr] = dev
		return true
	})
	d.logger.WithField("count", len(out)).Info("discovery: scan complete")
	return out, nil
}

func (d *Discovery) handleAdvertisement(adv device.Advertisement, opts *ScanOptions) {
	addr := adv.Addr()

	if !d.shouldInclude(adv, opts) {
		return
	}

	existing, found := d.devices.Get(addr)
	if !found {
		rec := &Device{
			Address:     addr,
			DisplayName: displayName(adv),
			LastRSSI:    adv.RSSI(),
		}
		d.devices.Set(addr, rec)
		d.logger.WithFields(logrus.Fields{"address": addr, "name": rec.DisplayName, "rssi": rec.LastRSSI}).Info("discovery: new RNode")
		if d.events != nil {
			d.events.Publish(eventbus.Event{Kind: eventbus.KindDeviceDiscovered, Address: addr, Name: rec.DisplayName, Timestamp: time.Now()})
		}
		return
	}

	existing.LastRSSI = adv.RSSI()
}

func displayName(adv device.Advertisement) string {
	if n := adv.LocalName(); n != "" {
		return n
	}
	return "Unknown RNode"
}

// shouldInclude applies the allow/block lists inherited from the original
// scanner plus the Nordic-UART-service-or-name-substring RNode filter.
func (d *Discovery) shouldInclude(adv device.Advertisement, opts *ScanOptions) bool {
	addr := adv.Addr()

	for _, blocked := range opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}
	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if hasNordicUART(adv) {
		return true
	}
	if opts.ServiceUUIDOnly {
		return false
	}
	return matchesRNodeName(adv.LocalName())
}

func hasNordicUART(adv device.Advertisement) bool {
	for _, svc := range adv.Services() {
		if device.NormalizeUUID(svc) == gattlink.ServiceUUID {
			return true
		}
	}
	return false
}

func matchesRNodeName(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, tok := range nameTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// List returns a snapshot of every device sighted so far.
func (d *Discovery) List() map[string]*Device {
	out := make(map[string]*Device)
	d.devices.Range(func(addr string, dev *Device) bool {
		out[addr] = dev
		return true
	})
	return out
}

// Get returns the cached sighting for address, if any.
func (d *Discovery) Get(address string) (*Device, bool) {
	return d.devices.Get(address)
}

// MarkConnected updates the connected hint for a cached sighting.
func (d *Discovery) MarkConnected(address string, connected bool) {
	if dev, ok := d.devices.Get(address); ok {
		dev.Connected = connected
	}
}

// VerifyCompatibility performs a short connection to confirm the peripheral
// exposes the Nordic UART service with the required RX/TX characteristics
// and properties.
func VerifyCompatibility(ctx context.Context, address string, logger *logrus.Logger) (bool, error) {
	link := gattlink.New(address, gattlink.Options{ConnectTimeout: 10 * time.Second, Logger: logger}, gattlink.Callbacks{})
	if err := link.Connect(ctx); err != nil {
		return false, err
	}
	defer func() { _ = link.Disconnect() }()
	return true, nil
}
