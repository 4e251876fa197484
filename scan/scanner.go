package scan

import (
	"context"
	"runtime"
)

// Scanner runs one discovery pass.
type Scanner interface {
	Scan(ctx context.Context) ([]Device, error)
}

// VendorLookup is satisfied by *VendorDirectory.
type VendorLookup interface {
	VendorFor(mac string) string
}

// Config controls a DeviceScanner.
type Config struct {
	// Workers bounds concurrent probes. 1 probes sequentially.
	Workers int
	// Resolvers bounds concurrent hostname lookups during collection.
	// Defaults to the number of CPUs.
	Resolvers int
	// InRangeOnly drops neighbor entries for addresses outside the probed range.
	InRangeOnly bool
	// OnProbe is called after each probe returns. It may be called concurrently.
	OnProbe func(ip string)
}

func applyDefaults(cfg *Config) Config {
	if cfg == nil {
		return Config{
			Workers:   1,
			Resolvers: runtime.NumCPU(),
		}
	}

	out := *cfg
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.Resolvers <= 0 {
		out.Resolvers = runtime.NumCPU()
	}
	return out
}
