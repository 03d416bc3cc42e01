package market

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimeframe is returned for timeframe strings that cannot be parsed.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Timeframe is the candle interval of a run, e.g. "30m" or "1h".
type Timeframe struct {
	raw string
	d   time.Duration
}

// ParseTimeframe parses "<n><unit>" where unit is one of m, h, d, w.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Timeframe{}, fmt.Errorf("%q: %w", s, ErrInvalidTimeframe)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Timeframe{}, fmt.Errorf("%q: %w", s, ErrInvalidTimeframe)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return Timeframe{}, fmt.Errorf("%q: %w", s, ErrInvalidTimeframe)
	}

	return Timeframe{raw: s, d: time.Duration(n) * unit}, nil
}

// MustParseTimeframe is like ParseTimeframe but panics on error.
func MustParseTimeframe(s string) Timeframe {
	tf, err := ParseTimeframe(s)
	if err != nil {
		panic(err)
	}
	return tf
}

func (tf Timeframe) String() string { return tf.raw }

// Duration returns the interval length.
func (tf Timeframe) Duration() time.Duration { return tf.d }

// Milliseconds returns the interval length in milliseconds.
func (tf Timeframe) Milliseconds() int64 { return tf.d.Milliseconds() }

// IsZero reports whether the timeframe was never set.
func (tf Timeframe) IsZero() bool { return tf.d == 0 }
