package scan

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Device is a discovered host.
type Device struct {
	IP       string
	MAC      string
	Vendor   string
	Hostname string
}

func (d Device) String() string {
	return fmt.Sprintf("%s\t%s\t%s\t%s", d.IP, d.MAC, d.Vendor, d.Hostname)
}

// VendorRecord returns the MAC,VENDOR row describing this device.
func (d Device) VendorRecord() VendorRecord {
	return VendorRecord{MAC: d.MAC, Vendor: d.Vendor}
}

// WriteDevices prints devices as a tab-aligned table.
func WriteDevices(w io.Writer, devices []Device) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "IP\tMAC\tVendor\tHOSTNAME")
	for _, d := range devices {
		fmt.Fprintln(tw, d.String())
	}
	return tw.Flush()
}
