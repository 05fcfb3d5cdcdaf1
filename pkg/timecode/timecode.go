// Package timecode provides ffmpeg-style timecode formatting and parsing.
//
// ffmpeg accepts time specifications as "[HH:]MM:SS[.mmm]" for options such
// as -ss and -t. Two render variants exist because ffmpeg treats them
// identically but downstream tooling compares argument strings byte for byte:
//
//   - FromSeconds renders zero-padded "HH:MM:SS" (chunk start offsets)
//   - Format renders "H:MM:SS" with an unpadded hour (seek inpoints)
package timecode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FromSeconds renders a non-negative second count as a zero-padded
// "HH:MM:SS" timecode. Hours overflow past 99 rather than wrapping.
func FromSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Format renders a duration as "H:MM:SS" with an unpadded hour field.
// Sub-second precision is truncated.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Parse parses an ffmpeg-style timecode "[HH:]MM:SS[.mmm]" or a plain
// second count ("90", "90.5") into a duration.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timecode")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}

	// Plain seconds, possibly fractional.
	if len(parts) == 1 {
		secs, err := strconv.ParseFloat(parts[0], 64)
		if err != nil || secs < 0 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}

	var h, m int
	var err error
	if len(parts) == 3 {
		if h, err = strconv.Atoi(parts[0]); err != nil || h < 0 {
			return 0, fmt.Errorf("invalid hours in timecode %q", s)
		}
		parts = parts[1:]
	}
	if m, err = strconv.Atoi(parts[0]); err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minutes in timecode %q", s)
	}
	secs, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || secs < 0 || secs >= 60 {
		return 0, fmt.Errorf("invalid seconds in timecode %q", s)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	d += time.Duration(secs * float64(time.Second))
	return d, nil
}
