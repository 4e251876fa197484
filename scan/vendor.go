package scan

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/gopacket/macs"
)

// UnknownVendor is reported when no record matches a MAC.
const UnknownVendor = "NA"

type VendorRecord struct {
	MAC    string
	Vendor string
}

// VendorDirectory maps MAC prefixes to manufacturers. It is read-only once
// built and safe for concurrent use.
type VendorDirectory struct {
	records []VendorRecord
}

func NewVendorDirectory(records []VendorRecord) *VendorDirectory {
	normalized := make([]VendorRecord, 0, len(records))
	for _, r := range records {
		normalized = append(normalized, VendorRecord{
			MAC:    normalizeMAC(r.MAC),
			Vendor: r.Vendor,
		})
	}
	return &VendorDirectory{records: normalized}
}

// LoadVendorDirectory reads a CSV table with MAC and VENDOR header columns.
func LoadVendorDirectory(path string) (*VendorDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	defer f.Close()

	records, err := readVendorRecords(f)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	return NewVendorDirectory(records), nil
}

// BuiltinVendorDirectory uses the IEEE OUI registry compiled into gopacket.
func BuiltinVendorDirectory() *VendorDirectory {
	records := make([]VendorRecord, 0, len(macs.ValidMACPrefixMap))
	for prefix, vendor := range macs.ValidMACPrefixMap {
		records = append(records, VendorRecord{
			MAC:    fmt.Sprintf("%02X%02X%02X", prefix[0], prefix[1], prefix[2]),
			Vendor: vendor,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].MAC < records[j].MAC
	})
	return NewVendorDirectory(records)
}

func readVendorRecords(r io.Reader) ([]VendorRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}

	macCol, vendorCol := -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "MAC":
			macCol = i
		case "VENDOR":
			vendorCol = i
		}
	}
	if macCol < 0 || vendorCol < 0 {
		return nil, errors.New("header must contain MAC and VENDOR columns")
	}

	var records []VendorRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) <= macCol || len(row) <= vendorCol {
			continue
		}
		records = append(records, VendorRecord{
			MAC:    row[macCol],
			Vendor: strings.TrimSpace(row[vendorCol]),
		})
	}

	return records, nil
}

// VendorFor returns the vendor of the first record whose MAC contains mac.
func (d *VendorDirectory) VendorFor(mac string) string {
	needle := normalizeMAC(mac)
	if needle == "" {
		return UnknownVendor
	}

	for _, r := range d.records {
		if strings.Contains(r.MAC, needle) {
			return r.Vendor
		}
	}

	return UnknownVendor
}

func (d *VendorDirectory) Len() int {
	return len(d.records)
}

func normalizeMAC(mac string) string {
	mac = strings.ReplaceAll(mac, "-", "")
	mac = strings.ReplaceAll(mac, ":", "")
	return strings.ToUpper(strings.TrimSpace(mac))
}
