package scan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/mostlygeek/arp"
	log "github.com/sirupsen/logrus"
)

// NeighborEntry is one dynamic row of the OS neighbor cache.
type NeighborEntry struct {
	IP     string
	MAC    string
	Prefix string
}

// NeighborSource returns the neighbor cache as text with one
// "<ip> <mac> dynamic|static" row per entry.
type NeighborSource interface {
	Query(ctx context.Context) (string, error)
}

var neighborPattern = regexp.MustCompile(
	`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})[ \t]+(([0-9A-Fa-f]{2}[-:][0-9A-Fa-f]{2}[-:][0-9A-Fa-f]{2})[-:][0-9A-Fa-f]{2}[-:][0-9A-Fa-f]{2}[-:][0-9A-Fa-f]{2})[ \t]+dynamic\b`,
)

type NeighborTable struct {
	source NeighborSource
}

func NewNeighborTable(source NeighborSource) *NeighborTable {
	return &NeighborTable{source: source}
}

// ReadDynamicEntries takes one snapshot of the neighbor cache. Static
// entries are skipped.
func (t *NeighborTable) ReadDynamicEntries(ctx context.Context) ([]NeighborEntry, error) {
	text, err := t.source.Query(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading neighbor cache: %w", err)
	}

	entries := ParseNeighborTable(text)
	log.Debugf("Neighbor cache holds %d dynamic entries", len(entries))
	return entries, nil
}

func ParseNeighborTable(text string) []NeighborEntry {
	entries := []NeighborEntry{}
	for _, m := range neighborPattern.FindAllStringSubmatch(text, -1) {
		entries = append(entries, NeighborEntry{
			IP:     m[1],
			MAC:    strings.ToLower(strings.ReplaceAll(m[2], ":", "-")),
			Prefix: strings.ToLower(strings.ReplaceAll(m[3], ":", "-")),
		})
	}
	return entries
}

const (
	atfComplete  = 0x2
	atfPermanent = 0x4
)

// ProcSource renders the Linux /proc/net/arp table.
type ProcSource struct {
	Path string
}

func (s *ProcSource) Query(ctx context.Context) (string, error) {
	path := s.Path
	if path == "" {
		path = "/proc/net/arp"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	out := &strings.Builder{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Scan() // skip the field descriptions

	for scanner.Scan() {
		// IP address, HW type, Flags, HW address, Mask, Device
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		flags, err := strconv.ParseUint(fields[2], 0, 32)
		if err != nil || flags&atfComplete == 0 {
			continue
		}

		mac := formatMAC(fields[3])
		if mac == "" {
			continue
		}

		state := "dynamic"
		if flags&atfPermanent != 0 {
			state = "static"
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", fields[0], mac, state)
	}

	return out.String(), scanner.Err()
}

// CommandSource runs the arp utility. Windows "arp -a" already carries the
// dynamic/static column; BSD style "arp -an" output is rendered with
// permanent entries marked static.
type CommandSource struct {
	Runner CommandRunner
	// GOOS selects the output format. Defaults to runtime.GOOS.
	GOOS string
}

func (s *CommandSource) Query(ctx context.Context) (string, error) {
	runner := s.Runner
	if runner == nil {
		runner = ExecRunner
	}
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	if goos == "windows" {
		out, err := runner.Run(ctx, "arp", "-a")
		if err != nil {
			return "", fmt.Errorf("arp -a: %w", err)
		}
		return string(out), nil
	}

	out, err := runner.Run(ctx, "arp", "-an")
	if err != nil {
		return "", fmt.Errorf("arp -an: %w", err)
	}
	return renderBSDTable(string(out)), nil
}

// renderBSDTable converts lines such as
// "? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]".
func renderBSDTable(text string) string {
	out := &strings.Builder{}
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 || fields[2] != "at" {
			continue
		}

		ip := strings.Trim(fields[1], "()")
		if net.ParseIP(ip).To4() == nil {
			continue
		}

		mac := formatMAC(fields[3])
		if mac == "" {
			continue
		}

		state := "dynamic"
		for _, f := range fields[4:] {
			if f == "permanent" || f == "PERM" || f == "static" {
				state = "static"
				break
			}
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", ip, mac, state)
	}
	return out.String()
}

// CacheSource reads the table through github.com/mostlygeek/arp. The library
// does not report entry state so every complete entry is treated as dynamic;
// it is only used when selected explicitly.
type CacheSource struct {
	Table func() arp.ArpTable
}

func (s *CacheSource) Query(ctx context.Context) (string, error) {
	read := s.Table
	if read == nil {
		read = arp.Table
	}

	table := read()
	if table == nil {
		return "", errors.New("arp table unavailable")
	}

	ips := make([]string, 0, len(table))
	for ip := range table {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool {
		return bytes.Compare(net.ParseIP(ips[i]).To16(), net.ParseIP(ips[j]).To16()) < 0
	})

	out := &strings.Builder{}
	for _, ip := range ips {
		mac := formatMAC(table[ip])
		if mac == "" {
			continue
		}
		fmt.Fprintf(out, "%s\t%s\tdynamic\n", ip, mac)
	}
	return out.String(), nil
}

// DefaultNeighborSource picks the source matching the running OS.
func DefaultNeighborSource() NeighborSource {
	switch runtime.GOOS {
	case "linux":
		return &ProcSource{}
	default:
		return &CommandSource{}
	}
}

// formatMAC converts a 6-octet address to lower-case hyphen form, padding
// single-digit octets as printed by BSD arp. Incomplete and all-zero
// addresses yield "".
func formatMAC(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ':' || r == '-'
	})
	if len(parts) != 6 {
		return ""
	}

	zero := true
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return ""
		}
		if n != 0 {
			zero = false
		}
		parts[i] = fmt.Sprintf("%02x", n)
	}
	if zero {
		return ""
	}

	return strings.Join(parts, "-")
}
