package scan

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// MaxRangeSize is the largest range ExpandRange materializes, a /16.
const MaxRangeSize = 1 << 16

// ExpandRange returns every address between start and end, octet by octet.
// The first octet varies slowest. An inverted octet yields an empty range.
func ExpandRange(start, end string) ([]string, error) {
	if end == "" {
		end = start
	}

	from, err := parseQuad(start)
	if err != nil {
		return nil, err
	}
	to, err := parseQuad(end)
	if err != nil {
		return nil, err
	}

	var size int64 = 1
	for i := range from {
		if to[i] < from[i] {
			return []string{}, nil
		}
		size *= int64(to[i] - from[i] + 1)
	}
	if size > MaxRangeSize {
		return nil, &MalformedRangeError{
			Input:  start + "-" + end,
			Reason: fmt.Sprintf("%d addresses exceeds the limit of %d", size, MaxRangeSize),
		}
	}

	ips := make([]string, 0, size)
	for a := from[0]; a <= to[0]; a++ {
		for b := from[1]; b <= to[1]; b++ {
			for c := from[2]; c <= to[2]; c++ {
				for d := from[3]; d <= to[3]; d++ {
					ips = append(ips, fmt.Sprintf("%d.%d.%d.%d", a, b, c, d))
				}
			}
		}
	}

	return ips, nil
}

// ParseTarget is ExpandRange that also accepts a CIDR block as start when end is empty.
func ParseTarget(start, end string) ([]string, error) {
	if end == "" && strings.Contains(start, "/") {
		first, last, err := cidrBounds(start)
		if err != nil {
			return nil, err
		}
		return ExpandRange(first, last)
	}
	return ExpandRange(start, end)
}

func cidrBounds(target string) (string, string, error) {
	_, ipnet, err := net.ParseCIDR(target)
	if err != nil {
		return "", "", &MalformedRangeError{Input: target, Reason: err.Error()}
	}

	first := ipnet.IP.To4()
	if first == nil {
		return "", "", &MalformedRangeError{Input: target, Reason: "not an IPv4 network"}
	}

	last := make(net.IP, len(first))
	for i := range first {
		last[i] = first[i] | ^ipnet.Mask[i]
	}

	return first.String(), last.String(), nil
}

func parseQuad(quad string) ([4]int, error) {
	var octets [4]int

	parts := strings.Split(quad, ".")
	if len(parts) != 4 {
		return octets, &MalformedRangeError{
			Input:  quad,
			Reason: fmt.Sprintf("expected 4 octets, got %d", len(parts)),
		}
	}

	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return octets, &MalformedRangeError{Input: quad, Reason: fmt.Sprintf("octet %d is not a number", i+1)}
		}
		if n < 0 || n > 255 {
			return octets, &MalformedRangeError{Input: quad, Reason: fmt.Sprintf("octet %d out of range: %d", i+1, n)}
		}
		octets[i] = n
	}

	return octets, nil
}

type TargetIterator struct {
	ips   []string
	index int
}

func NewTargetIterator(ips []string) *TargetIterator {
	return &TargetIterator{ips: ips}
}

func (ti *TargetIterator) Peek() (string, error) {
	if ti.index >= len(ti.ips) {
		return "", io.EOF
	}
	return ti.ips[ti.index], nil
}

func (ti *TargetIterator) Next() (string, error) {
	ip, err := ti.Peek()
	if err != nil {
		return "", err
	}
	ti.index++
	return ip, nil
}

func (ti *TargetIterator) Len() int {
	return len(ti.ips)
}
