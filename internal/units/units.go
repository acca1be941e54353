// Package units converts between human byte strings and counts.
package units

import (
	"fmt"

	gounits "github.com/docker/go-units"
	"github.com/dustin/go-humanize"
)

// Common byte sizes.
const (
	KiB int64 = 1 << 10
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)

// Parse converts a human-readable size like "12.5GB" or "300 MiB" to bytes.
// Decimal suffixes (KB, MB, GB) are treated as binary multiples, matching
// how the underlying filesystem tools report sizes.
func Parse(s string) (int64, error) {
	n, err := gounits.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parsing size %q: %w", s, err)
	}
	return n, nil
}

// Format renders a byte count in IEC units, e.g. "1.5 GiB".
func Format(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// FormatRate renders a throughput in IEC units per second, e.g. "120 MiB/s".
func FormatRate(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}
