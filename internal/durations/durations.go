package durations

import (
	"errors"
	"strconv"
	"time"
)

// ErrInvalidDuration is returned for anything outside the accepted
// grammar: a positive integer immediately followed by one unit
// character (s, m, h or d). Composite forms like "1h30m" are rejected.
var ErrInvalidDuration = errors.New("invalid duration format")

// Parse converts a compact duration string such as "10m", "1h" or "7d"
// into a time.Duration.
func Parse(text string) (time.Duration, error) {
	if len(text) < 2 {
		return 0, ErrInvalidDuration
	}

	unit := text[len(text)-1]
	magnitude, err := strconv.Atoi(text[:len(text)-1])
	if err != nil || magnitude <= 0 {
		return 0, ErrInvalidDuration
	}

	switch unit {
	case 's':
		return time.Duration(magnitude) * time.Second, nil
	case 'm':
		return time.Duration(magnitude) * time.Minute, nil
	case 'h':
		return time.Duration(magnitude) * time.Hour, nil
	case 'd':
		return time.Duration(magnitude) * 24 * time.Hour, nil
	default:
		return 0, ErrInvalidDuration
	}
}
