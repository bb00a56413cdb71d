package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingChannelOverwritesOldestWhenFull(t *testing.T) {
	rc := NewRingChannel[int](2)
	rc.ForceSend(1)
	rc.ForceSend(2)
	dropped := rc.ForceSend(3)

	assert.True(t, dropped)
	assert.Equal(t, 2, rc.Len())

	first, ok := rc.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, 2, first)

	second, ok := rc.TryReceive()
	assert.True(t, ok)
	assert.Equal(t, 3, second)
}

func TestRingChannelTrySendFailsWhenFull(t *testing.T) {
	rc := NewRingChannel[int](1)
	assert.True(t, rc.TrySend(1))
	assert.False(t, rc.TrySend(2))
}

func TestRingChannelMetrics(t *testing.T) {
	rc := NewRingChannel[int](1)
	rc.ForceSend(1)
	rc.ForceSend(2) // drops 1
	_, _ = rc.TryReceive()

	m := rc.GetMetrics()
	assert.Equal(t, int64(2), m.Written)
	assert.Equal(t, int64(1), m.Overwritten)
	assert.Equal(t, int64(1), m.Processed)
}

func TestNewRingChannelPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { NewRingChannel[int](0) })
}
