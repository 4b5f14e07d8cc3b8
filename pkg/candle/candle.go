package candle

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Interval identifies the bar width of a series.
type Interval string

const (
	OneMinute    Interval = "1min"
	ThirtyMinute Interval = "30min"
	Daily        Interval = "daily"
)

// Intervals lists every supported interval, longest history first.
func Intervals() []Interval {
	return []Interval{Daily, ThirtyMinute, OneMinute}
}

// ParseInterval accepts the canonical names plus a few common aliases.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1min", "1m", "intraday":
		return OneMinute, nil
	case "30min", "30m", "intraday_30min":
		return ThirtyMinute, nil
	case "daily", "1d", "day":
		return Daily, nil
	default:
		return "", fmt.Errorf("candle: unsupported interval %q", s)
	}
}

// Folder is the object store directory the interval is persisted under.
func (i Interval) Folder() string {
	switch i {
	case OneMinute:
		return "intraday"
	case ThirtyMinute:
		return "intraday_30min"
	case Daily:
		return "daily"
	default:
		return string(i)
	}
}

// Duration returns the bar width. Daily bars report 24h.
func (i Interval) Duration() time.Duration {
	switch i {
	case OneMinute:
		return time.Minute
	case ThirtyMinute:
		return 30 * time.Minute
	case Daily:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (i Interval) String() string { return string(i) }

// Candle is a single OHLCV bar. Timestamps are UTC and minute aligned.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Validate reports the first bar invariant the candle violates.
func (c Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("price %v must be finite and positive", p)
		}
	}
	if c.High < math.Max(c.Open, c.Close) {
		return fmt.Errorf("high %v below max(open,close)", c.High)
	}
	if c.Low > math.Min(c.Open, c.Close) {
		return fmt.Errorf("low %v above min(open,close)", c.Low)
	}
	if c.Volume < 0 {
		return fmt.Errorf("negative volume %d", c.Volume)
	}
	return nil
}

// Series is an ascending sequence of candles with unique timestamps.
type Series []Candle

// Last returns the most recent candle.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// First returns the oldest candle.
func (s Series) First() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[0], true
}

// Clone returns an independent copy so callers can mutate freely.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Since returns the suffix of the series with timestamps at or after t.
func (s Series) Since(t time.Time) Series {
	idx := len(s)
	for i := range s {
		if !s[i].Timestamp.Before(t) {
			idx = i
			break
		}
	}
	return s[idx:]
}

// FloorMinute truncates t to the start of its UTC minute.
func FloorMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}
