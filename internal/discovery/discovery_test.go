//go:build test

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/rnodeble/internal/gattlink"
	"github.com/srg/rnodeble/internal/testutils"
)

func TestMatchesRNodeName(t *testing.T) {
	cases := map[string]bool{
		"RNode 433":       true,
		"reticulum-relay": true,
		"LoRa Beacon":     true,
		"":                false,
		"Random Speaker":  false,
	}
	for name, want := range cases {
		assert.Equal(t, want, matchesRNodeName(name), name)
	}
}

func TestHasNordicUART(t *testing.T) {
	withService := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithServices(gattlink.ServiceUUID).
		Build()
	assert.True(t, hasNordicUART(withService))

	withoutService := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:02").
		WithServices("180d").
		Build()
	assert.False(t, hasNordicUART(withoutService))
}

func TestShouldIncludeByServiceUUID(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("random").
		WithServices(gattlink.ServiceUUID).
		Build()

	assert.True(t, d.shouldInclude(adv, DefaultScanOptions()))
}

func TestShouldIncludeByNameFallback(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("RNode 433").
		WithServices().
		Build()

	assert.True(t, d.shouldInclude(adv, DefaultScanOptions()))
}

func TestShouldIncludeServiceUUIDOnlyRejectsNameMatch(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("RNode 433").
		WithServices().
		Build()

	opts := DefaultScanOptions()
	opts.ServiceUUIDOnly = true
	assert.False(t, d.shouldInclude(adv, opts))
}

func TestShouldIncludeRejectsUnrelatedDevice(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("Random Speaker").
		WithServices().
		Build()

	assert.False(t, d.shouldInclude(adv, DefaultScanOptions()))
}

func TestShouldIncludeHonorsBlockList(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("RNode 433").
		WithServices().
		Build()

	opts := DefaultScanOptions()
	opts.BlockList = []string{"AA:BB:CC:DD:EE:01"}
	assert.False(t, d.shouldInclude(adv, opts))
}

func TestShouldIncludeHonorsAllowList(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("RNode 433").
		WithServices().
		Build()

	opts := DefaultScanOptions()
	opts.AllowList = []string{"FF:FF:FF:FF:FF:FF"}
	assert.False(t, d.shouldInclude(adv, opts))

	opts.AllowList = []string{"AA:BB:CC:DD:EE:01"}
	assert.True(t, d.shouldInclude(adv, opts))
}

func TestHandleAdvertisementCachesNewDeviceOnce(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("RNode 433").
		WithRSSI(-40).
		WithServices().
		Build()

	d.handleAdvertisement(adv, DefaultScanOptions())
	d.handleAdvertisement(adv, DefaultScanOptions())

	list := d.List()
	assert.Len(t, list, 1)
	assert.Equal(t, "RNode 433", list["AA:BB:CC:DD:EE:01"].DisplayName)
	assert.Equal(t, -40, list["AA:BB:CC:DD:EE:01"].LastRSSI)
}

func TestGetAndMarkConnected(t *testing.T) {
	d := New(nil, nil)
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("RNode 433").
		WithRSSI(-50).
		WithServices().
		Build()
	d.handleAdvertisement(adv, DefaultScanOptions())

	dev, ok := d.Get("AA:BB:CC:DD:EE:01")
	assert.True(t, ok)
	assert.False(t, dev.Connected)

	d.MarkConnected("AA:BB:CC:DD:EE:01", true)
	dev, _ = d.Get("AA:BB:CC:DD:EE:01")
	assert.True(t, dev.Connected)

	d.MarkConnected("unknown", true)
}

func TestDisplayNameFallsBackWhenUnnamed(t *testing.T) {
	adv := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:01").
		WithName("").
		Build()
	assert.Equal(t, "Unknown RNode", displayName(adv))
}
