package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gchaimke/netscan/scan"
	"github.com/gchaimke/netscan/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const vendorDBFile = "mac_dbs.csv"

const (
	exitFailure        = 1
	exitMalformedRange = 2
	exitConfiguration  = 3
)

var debug bool
var startIP string
var endIP string
var vendorDB string
var appendDB string
var timeoutMS int = 2000
var parallelism int = 1
var probeType = "command"
var resolverType = "nslookup"
var dnsServer string
var neighborSource = "auto"
var inRangeOnly bool
var versionRequested bool

func init() {
	rootCmd.PersistentFlags().StringVarP(&startIP, "startip", "s", startIP, "First address of the range, or a CIDR block e.g. 192.168.1.0/24")
	rootCmd.PersistentFlags().StringVarP(&endIP, "endip", "e", endIP, "Last address of the range (defaults to startip)")
	rootCmd.PersistentFlags().StringVarP(&vendorDB, "vendor-db", "", vendorDB, "MAC,VENDOR reference table, or 'builtin' (defaults to mac_dbs.csv next to the executable)")
	rootCmd.PersistentFlags().StringVarP(&appendDB, "append-db", "", appendDB, "Append MAC,VENDOR rows of discovered devices to this file")
	rootCmd.PersistentFlags().Lookup("append-db").NoOptDefVal = scan.DefaultAppendFile
	rootCmd.PersistentFlags().IntVarP(&timeoutMS, "timeout-ms", "t", timeoutMS, "Probe timeout in MS")
	rootCmd.PersistentFlags().IntVarP(&parallelism, "workers", "w", parallelism, "Parallel probes")
	rootCmd.PersistentFlags().StringVarP(&probeType, "probe", "", probeType, "Probe type. Must be one of command, icmp, connect")
	rootCmd.PersistentFlags().StringVarP(&resolverType, "resolver", "", resolverType, "Hostname resolver. Must be one of nslookup, system, dns")
	rootCmd.PersistentFlags().StringVarP(&dnsServer, "dns-server", "", dnsServer, "Server for the dns resolver (defaults to the first nameserver in /etc/resolv.conf)")
	rootCmd.PersistentFlags().StringVarP(&neighborSource, "neighbors", "", neighborSource, "Neighbor cache source. Must be one of auto, proc, command, cache")
	rootCmd.PersistentFlags().BoolVarP(&inRangeOnly, "in-range-only", "", inRangeOnly, "Only report neighbors inside the scanned range")
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", debug, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")
}

func createResolver(resolverTypeStr string, timeout time.Duration) (scan.Resolver, error) {
	switch strings.ToLower(resolverTypeStr) {
	case "nslookup":
		return &scan.NslookupResolver{}, nil
	case "system":
		return &scan.LookupResolver{}, nil
	case "dns":
		return scan.NewDNSResolver(dnsServer, timeout)
	}

	return nil, fmt.Errorf("Unknown resolver '%s'", resolverTypeStr)
}

func createNeighborSource(sourceStr string) (scan.NeighborSource, error) {
	switch strings.ToLower(sourceStr) {
	case "auto", "":
		return scan.DefaultNeighborSource(), nil
	case "proc":
		return &scan.ProcSource{}, nil
	case "command":
		return &scan.CommandSource{}, nil
	case "cache":
		return &scan.CacheSource{}, nil
	}

	return nil, fmt.Errorf("Unknown neighbor source '%s'", sourceStr)
}

func loadVendors(path string) (*scan.VendorDirectory, error) {
	if path == "builtin" {
		return scan.BuiltinVendorDirectory(), nil
	}
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, &scan.ConfigurationError{Path: vendorDBFile, Err: err}
		}
		path = filepath.Join(filepath.Dir(exe), vendorDBFile)
	}
	return scan.LoadVendorDirectory(path)
}

var rootCmd = &cobra.Command{
	Use:           "netscan",
	Short:         "netscan discovers devices on a local IPv4 range",
	Long:          `Probes every address of a range, then lists the neighbors the OS learned with their MAC vendor and hostname.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if versionRequested {
			v := version.Version
			if v == "" {
				v = "development version"
			}
			fmt.Printf("netscan %s\n", v)
			return nil
		}

		if debug {
			log.SetLevel(log.DebugLevel)
		}

		if startIP == "" {
			return errors.New("required flag \"startip\" not set")
		}

		ips, err := scan.ParseTarget(startIP, endIP)
		if err != nil {
			return err
		}

		vendors, err := loadVendors(vendorDB)
		if err != nil {
			return err
		}
		log.Debugf("Loaded %d vendor prefixes", vendors.Len())

		timeout := time.Millisecond * time.Duration(timeoutMS)

		prober, err := scan.NewProber(strings.ToLower(probeType), timeout)
		if err != nil {
			return err
		}

		resolver, err := createResolver(resolverType, timeout)
		if err != nil {
			return err
		}

		source, err := createNeighborSource(neighborSource)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		scanner := scan.NewDeviceScanner(
			scan.NewTargetIterator(ips),
			prober,
			scan.NewNeighborTable(source),
			vendors,
			resolver,
			&scan.Config{
				Workers:     parallelism,
				InRangeOnly: inRangeOnly,
				OnProbe: func(string) {
					fmt.Fprint(os.Stderr, ".")
				},
			},
		)

		startTime := time.Now()
		fmt.Fprint(os.Stderr, "Discovering")
		log.Debugf("Probing %d addresses...", len(ips))

		devices, err := scanner.Scan(ctx)
		fmt.Fprintf(os.Stderr, "\nTotal time %s\n", time.Since(startTime).String())
		if err != nil {
			return err
		}

		if err := scan.WriteDevices(os.Stdout, devices); err != nil {
			return err
		}

		if appendDB != "" {
			records := make([]scan.VendorRecord, 0, len(devices))
			for _, d := range devices {
				records = append(records, d.VendorRecord())
			}
			if err := scan.AppendVendorRecords(appendDB, records); err != nil {
				return err
			}
			log.Debugf("Appended %d rows to %s", len(records), appendDB)
		}

		return nil
	},
}

func exitCode(err error) int {
	var malformed *scan.MalformedRangeError
	var cfgErr *scan.ConfigurationError
	switch {
	case errors.As(err, &malformed):
		return exitMalformedRange
	case errors.As(err, &cfgErr):
		return exitConfiguration
	}
	return exitFailure
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
