package scan

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DeviceScanner probes every target, then reads the neighbor cache once and
// enriches each dynamic entry with vendor and hostname.
type DeviceScanner struct {
	ti        *TargetIterator
	prober    Prober
	neighbors *NeighborTable
	vendors   VendorLookup
	resolver  Resolver
	cfg       Config
}

func NewDeviceScanner(ti *TargetIterator, prober Prober, neighbors *NeighborTable, vendors VendorLookup, resolver Resolver, cfg *Config) *DeviceScanner {
	return &DeviceScanner{
		ti:        ti,
		prober:    prober,
		neighbors: neighbors,
		vendors:   vendors,
		resolver:  resolver,
		cfg:       applyDefaults(cfg),
	}
}

var _ Scanner = (*DeviceScanner)(nil)

func (s *DeviceScanner) Scan(ctx context.Context) ([]Device, error) {
	probed, err := s.probeAll(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.neighbors.ReadDynamicEntries(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.InRangeOnly {
		kept := entries[:0]
		for _, e := range entries {
			if _, ok := probed[e.IP]; ok {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	return s.enrich(ctx, entries), nil
}

// probeAll returns once every probe has returned or timed out.
func (s *DeviceScanner) probeAll(ctx context.Context) (map[string]struct{}, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	probed := make(map[string]struct{}, s.ti.Len())

	for {
		ip, err := s.ti.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		if gctx.Err() != nil {
			break
		}

		probed[ip] = struct{}{}
		g.Go(func() error {
			log.WithField("ip", ip).Debug("Probing")
			s.prober.Probe(gctx, ip)
			if s.cfg.OnProbe != nil {
				s.cfg.OnProbe(ip)
			}
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return probed, nil
}

func (s *DeviceScanner) enrich(ctx context.Context, entries []NeighborEntry) []Device {
	devices := make([]Device, len(entries))

	g := &errgroup.Group{}
	g.SetLimit(s.cfg.Resolvers)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			devices[i] = Device{
				IP:       entry.IP,
				MAC:      entry.MAC,
				Vendor:   s.vendors.VendorFor(entry.Prefix),
				Hostname: s.resolver.ResolveHostname(ctx, entry.IP),
			}
			log.WithFields(log.Fields{
				"ip":     entry.IP,
				"mac":    entry.MAC,
				"vendor": devices[i].Vendor,
			}).Debug("Device discovered")
			return nil
		})
	}

	_ = g.Wait()
	return devices
}
