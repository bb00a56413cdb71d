package eventbus

import "time"

// Kind identifies the category of a Bridge Service event.
type Kind string

const (
	KindManagerStarted     Kind = "manager_started"
	KindManagerStopped     Kind = "manager_stopped"
	KindDeviceDiscovered   Kind = "device_discovered"
	KindBridgeStateChanged Kind = "bridge_state_changed"
	KindVirtualSerialUp    Kind = "virtual_serial_created"
)

// Event is the payload carried on the Bridge Service's event bus. Fields not
// relevant to Kind are left zero.
type Event struct {
	Kind      Kind
	Address   string
	Name      string
	State     string
	Symlink   string
	Timestamp time.Time
}

// Bus is a typed, lossy event channel: a thin wrapper over RingChannel that
// gives Bridge Service subscribers a named type instead of a bare generic.
type Bus struct {
	rc *RingChannel[Event]
}

// NewBus creates an event bus with the given backlog capacity.
func NewBus(capacity int) *Bus {
	return &Bus{rc: NewRingChannel[Event](capacity)}
}

// Publish delivers an event to the bus, dropping the oldest backlog entry
// when full. Never blocks.
func (b *Bus) Publish(e Event) {
	b.rc.ForceSend(e)
}

// Subscribe returns a read-only channel of events. Multiple subscribers are
// not fanned out; callers needing multiple independent listeners should each
// hold their own Bus, or the caller is expected to multiplex C() themselves.
func (b *Bus) Subscribe() <-chan Event {
	return b.rc.C()
}

// Metrics reports delivery/drop counters for observability.
func (b *Bus) Metrics() Metrics {
	return b.rc.GetMetrics()
}
