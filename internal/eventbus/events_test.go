package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusPublishAndSubscribe(t *testing.T) {
	b := NewBus(2)
	b.Publish(Event{Kind: KindDeviceDiscovered, Address: "AA:BB:CC:DD:EE:FF"})

	select {
	case ev := <-b.Subscribe():
		assert.Equal(t, KindDeviceDiscovered, ev.Kind)
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", ev.Address)
	default:
		t.Fatal("expected event to be available without blocking")
	}
}

func TestBusDropsOldestWhenFull(t *testing.T) {
	b := NewBus(1)
	b.Publish(Event{Kind: KindDeviceDiscovered, Address: "first"})
	b.Publish(Event{Kind: KindDeviceDiscovered, Address: "second"})

	ev := <-b.Subscribe()
	assert.Equal(t, "second", ev.Address)
	assert.Equal(t, int64(1), b.Metrics().Overwritten)
}
