package ptyio

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeviceName(t *testing.T) string {
	return fmt.Sprintf("test-%s", t.Name())
}

func TestEndpointInfoBeforeOpen(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)

	info := ep.Info()
	assert.Equal(t, name, info.DeviceName)
	assert.False(t, info.Open)
	assert.Empty(t, info.SlavePath)
}

func TestEndpointOpenCreatesSymlinkAndClosesCleanly(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)
	t.Cleanup(func() { _ = ep.Close() })

	require.NoError(t, ep.Open(nil))

	info := ep.Info()
	assert.True(t, info.Open)
	assert.NotEmpty(t, info.SlavePath)
	assert.Equal(t, fmt.Sprintf("/tmp/cu.%s", name), info.SymlinkPath)

	target, err := os.Readlink(info.SymlinkPath)
	require.NoError(t, err)
	assert.Equal(t, info.SlavePath, target)

	require.NoError(t, ep.Close())

	_, err = os.Lstat(info.SymlinkPath)
	assert.True(t, os.IsNotExist(err))

	assert.False(t, ep.Info().Open)
}

func TestEndpointOpenTwiceErrors(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)
	t.Cleanup(func() { _ = ep.Close() })

	require.NoError(t, ep.Open(nil))
	assert.Error(t, ep.Open(nil))
}

func TestEndpointCloseIdempotent(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)

	assert.NoError(t, ep.Close())

	require.NoError(t, ep.Open(nil))
	assert.NoError(t, ep.Close())
	assert.NoError(t, ep.Close())
}

func TestEndpointConnectionCallbackFiresOnOpenAndClose(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)
	t.Cleanup(func() { _ = ep.Close() })

	events := make(chan bool, 2)
	ep.SetConnectionCallback(func(open bool) { events <- open })

	require.NoError(t, ep.Open(nil))
	assert.True(t, <-events)

	require.NoError(t, ep.Close())
	assert.False(t, <-events)
}

func TestEndpointSendFailsWhenNotOpen(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)
	assert.False(t, ep.Send([]byte("hello")))
}

func TestEndpointSendSucceedsWhenOpen(t *testing.T) {
	name := testDeviceName(t)
	ep := NewEndpoint(name, nil, 0, 0)
	t.Cleanup(func() { _ = ep.Close() })

	require.NoError(t, ep.Open(nil))
	assert.True(t, ep.Send([]byte("hello")))
}

func TestEndpointRelinkRemovesStaleSymlink(t *testing.T) {
	name := testDeviceName(t)
	symlinkPath := fmt.Sprintf("/tmp/cu.%s", name)
	_ = os.Remove(symlinkPath)
	require.NoError(t, os.Symlink("/tmp", symlinkPath))
	t.Cleanup(func() { _ = os.Remove(symlinkPath) })

	ep := NewEndpoint(name, nil, 0, 0)
	t.Cleanup(func() { _ = ep.Close() })

	require.NoError(t, ep.Open(nil))

	target, err := os.Readlink(symlinkPath)
	require.NoError(t, err)
	assert.NotEqual(t, "/tmp", target)
}
