package scan

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProber struct {
	mu    sync.Mutex
	ips   []string
	delay time.Duration
	count int32
}

func (p *recordingProber) Probe(ctx context.Context, ip string) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	p.ips = append(p.ips, ip)
	p.mu.Unlock()
	atomic.AddInt32(&p.count, 1)
}

type funcSource func(ctx context.Context) (string, error)

func (f funcSource) Query(ctx context.Context) (string, error) {
	return f(ctx)
}

type mapVendors map[string]string

func (m mapVendors) VendorFor(mac string) string {
	if v, ok := m[mac]; ok {
		return v
	}
	return UnknownVendor
}

type mapResolver map[string]string

func (m mapResolver) ResolveHostname(ctx context.Context, ip string) string {
	if name, ok := m[ip]; ok {
		return name
	}
	return ip
}

const twoHosts = "192.168.1.5\tb8-27-eb-00-00-05\tdynamic\n" +
	"192.168.1.1\t00-11-22-33-44-55\tstatic\n" +
	"192.168.1.9\taa-bb-cc-00-00-09\tdynamic\n"

func TestDeviceScannerEndToEnd(t *testing.T) {
	ips, err := ExpandRange("192.168.1.1", "192.168.1.10")
	require.NoError(t, err)

	prober := &recordingProber{}
	queries := 0
	source := funcSource(func(ctx context.Context) (string, error) {
		queries++
		return twoHosts, nil
	})

	scanner := NewDeviceScanner(
		NewTargetIterator(ips),
		prober,
		NewNeighborTable(source),
		mapVendors{"b8-27-eb": "Raspberry Pi Foundation"},
		mapResolver{"192.168.1.9": "nas.lan"},
		nil,
	)

	devices, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, queries)
	assert.Equal(t, ips, prober.ips)
	assert.Equal(t, []Device{
		{IP: "192.168.1.5", MAC: "b8-27-eb-00-00-05", Vendor: "Raspberry Pi Foundation", Hostname: "192.168.1.5"},
		{IP: "192.168.1.9", MAC: "aa-bb-cc-00-00-09", Vendor: "NA", Hostname: "nas.lan"},
	}, devices)
}

func TestDeviceScannerSnapshotAfterAllProbes(t *testing.T) {
	ips, err := ExpandRange("10.0.0.1", "10.0.0.40")
	require.NoError(t, err)

	prober := &recordingProber{delay: 5 * time.Millisecond}
	var probedAtSnapshot int32
	source := funcSource(func(ctx context.Context) (string, error) {
		probedAtSnapshot = atomic.LoadInt32(&prober.count)
		return "", nil
	})

	scanner := NewDeviceScanner(NewTargetIterator(ips), prober, NewNeighborTable(source),
		mapVendors{}, mapResolver{}, &Config{Workers: 8})

	devices, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, int32(40), probedAtSnapshot)
	assert.ElementsMatch(t, ips, prober.ips)
}

func TestDeviceScannerOnProbe(t *testing.T) {
	ips, err := ExpandRange("10.0.0.1", "10.0.0.5")
	require.NoError(t, err)

	var calls int32
	scanner := NewDeviceScanner(NewTargetIterator(ips), &recordingProber{},
		NewNeighborTable(funcSource(func(ctx context.Context) (string, error) { return "", nil })),
		mapVendors{}, mapResolver{}, &Config{Workers: 3, OnProbe: func(string) { atomic.AddInt32(&calls, 1) }})

	_, err = scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls)
}

func TestDeviceScannerInRangeOnly(t *testing.T) {
	ips, err := ExpandRange("192.168.1.1", "192.168.1.6")
	require.NoError(t, err)

	scanner := NewDeviceScanner(NewTargetIterator(ips), &recordingProber{},
		NewNeighborTable(funcSource(func(ctx context.Context) (string, error) { return twoHosts, nil })),
		mapVendors{}, mapResolver{}, &Config{InRangeOnly: true})

	devices, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "192.168.1.5", devices[0].IP)
}

func TestDeviceScannerDuplicateEntries(t *testing.T) {
	text := "10.0.0.2 aa-bb-cc-00-00-02 dynamic\n10.0.0.2 aa-bb-cc-00-00-02 dynamic\n"
	scanner := NewDeviceScanner(NewTargetIterator([]string{"10.0.0.2"}), &recordingProber{},
		NewNeighborTable(funcSource(func(ctx context.Context) (string, error) { return text, nil })),
		mapVendors{"aa-bb-cc": "Acme"}, mapResolver{}, nil)

	devices, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, devices[0], devices[1])
	assert.Equal(t, "Acme", devices[0].Vendor)
}

func TestDeviceScannerNeighborFailure(t *testing.T) {
	scanner := NewDeviceScanner(NewTargetIterator([]string{"10.0.0.2"}), &recordingProber{},
		NewNeighborTable(funcSource(func(ctx context.Context) (string, error) { return "", errors.New("permission denied") })),
		mapVendors{}, mapResolver{}, nil)

	_, err := scanner.Scan(context.Background())
	assert.Error(t, err)
}

func TestDeviceScannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ips, err := ExpandRange("10.0.0.1", "10.0.0.5")
	require.NoError(t, err)

	scanner := NewDeviceScanner(NewTargetIterator(ips), &recordingProber{},
		NewNeighborTable(funcSource(func(ctx context.Context) (string, error) { return twoHosts, nil })),
		mapVendors{}, mapResolver{}, nil)

	_, err = scanner.Scan(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriteDevices(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteDevices(buf, []Device{
		{IP: "192.168.1.5", MAC: "b8-27-eb-00-00-05", Vendor: "Raspberry Pi Foundation", Hostname: "pi.lan"},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"IP", "MAC", "Vendor", "HOSTNAME"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"192.168.1.5", "b8-27-eb-00-00-05", "Raspberry", "Pi", "Foundation", "pi.lan"}, strings.Fields(lines[1]))
	assert.Equal(t, strings.Index(lines[0], "MAC"), strings.Index(lines[1], "b8-27-eb"))
}
