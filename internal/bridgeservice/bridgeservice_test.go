package bridgeservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/srg/rnodeble/internal/eventbus"
	"github.com/srg/rnodeble/pkg/config"
)

func TestNewServiceUsesDefaultConfig(t *testing.T) {
	s := New(nil, nil)
	assert.NotNil(t, s.cfg)
	assert.Equal(t, 256, s.cfg.EventBusCapacity)
}

func TestDisconnectUnknownAddressErrors(t *testing.T) {
	s := New(config.DefaultConfig(), nil)
	err := s.Disconnect("AA:BB:CC:DD:EE:FF")
	assert.Error(t, err)
}

func TestInfoUnknownAddressErrors(t *testing.T) {
	s := New(config.DefaultConfig(), nil)
	_, err := s.Info("AA:BB:CC:DD:EE:FF")
	assert.Error(t, err)
}

func TestEmptyServiceSnapshots(t *testing.T) {
	s := New(config.DefaultConfig(), nil)
	assert.Empty(t, s.ListConnected())
	assert.Empty(t, s.VirtualSerialPorts())
	assert.Empty(t, s.ListDiscovered())

	status := s.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.Bridges)
	assert.Empty(t, status.Discovered)
}

func TestSubscribeEventsDispatchAndUnsubscribe(t *testing.T) {
	s := New(config.DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.wg.Add(1)
	go s.dispatchLoop(ctx, s.events.Subscribe())

	received := make(chan eventbus.Event, 4)
	unsubscribe := s.SubscribeEvents(func(ev eventbus.Event) { received <- ev })

	s.events.Publish(eventbus.Event{Kind: eventbus.KindDeviceDiscovered, Address: "AA:BB:CC:DD:EE:FF"})
	select {
	case ev := <-received:
		assert.Equal(t, eventbus.KindDeviceDiscovered, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("event not delivered before unsubscribe")
	}

	unsubscribe()

	s.events.Publish(eventbus.Event{Kind: eventbus.KindManagerStopped})
	select {
	case ev := <-received:
		t.Fatalf("unexpected event after unsubscribe: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
