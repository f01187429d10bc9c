// Package daydate maps capture instants onto the logical observing day.
//
// A night session spans midnight, so night frames are shifted back twelve
// hours before their calendar date is taken. Day frames keep their own date.
package daydate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the compact day-date form used in requests and file names.
const Layout = "20060102"

// NightOffset is subtracted from night captures before taking the date.
const NightOffset = 12 * time.Hour

// ErrInvalid reports a malformed day-date or partition.
var ErrInvalid = errors.New("invalid day date")

// Partition is the day/night classification of a capture session.
type Partition string

const (
	Day   Partition = "day"
	Night Partition = "night"
)

// ParsePartition accepts "day" or "night" in any case.
func ParsePartition(value string) (Partition, error) {
	switch Partition(strings.ToLower(strings.TrimSpace(value))) {
	case Day:
		return Day, nil
	case Night:
		return Night, nil
	default:
		return "", fmt.Errorf("%w: partition %q", ErrInvalid, value)
	}
}

// PartitionOf returns Night when night is set.
func PartitionOf(night bool) Partition {
	if night {
		return Night
	}
	return Day
}

// IsNight reports whether p is the night partition.
func (p Partition) IsNight() bool { return p == Night }

func (p Partition) String() string { return string(p) }

// For returns the logical day-date of a capture instant. The wall clock of
// capture is used, so callers pass local time.
func For(capture time.Time, night bool) time.Time {
	if night {
		capture = capture.Add(-NightOffset)
	}
	y, m, d := capture.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, capture.Location())
}

// Format renders t as YYYYMMDD.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse validates a compact YYYYMMDD string.
func Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != len(Layout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, value)
	}
	t, err := time.ParseInLocation(Layout, trimmed, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalid, value)
	}
	return t, nil
}
