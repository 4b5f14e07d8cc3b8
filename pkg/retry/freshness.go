package retry

import (
	"time"

	"candlekeep/pkg/candle"
)

// DailyMaxAge is how far the newest daily bar may trail the previous trading
// day before the payload counts as stale. It spans a long weekend.
const DailyMaxAge = 5 * 24 * time.Hour

// SessionCalendar is the slice of the market calendar freshness needs.
type SessionCalendar interface {
	IsTradingNow() bool
	CurrentSessionStart() time.Time
}

// TradingDays is the slice of the calendar daily freshness needs.
type TradingDays interface {
	Now() time.Time
	PreviousTradingDay(t time.Time) time.Time
}

// Fresh builds a validator that accepts a series only when it already holds a
// row from the current trading session, or when the market is closed. Row
// order does not matter.
func Fresh(cal SessionCalendar, symbol string, interval candle.Interval) func(candle.Series) error {
	return func(s candle.Series) error {
		return CheckSession(cal, symbol, interval, Newest(s))
	}
}

// CheckSession accepts latest when it falls in the current trading session or
// the market is closed.
func CheckSession(cal SessionCalendar, symbol string, interval candle.Interval, latest time.Time) error {
	if cal == nil || !cal.IsTradingNow() {
		return nil
	}
	start := cal.CurrentSessionStart()
	if !latest.IsZero() && !latest.Before(start) {
		return nil
	}
	return &StaleDataError{Symbol: symbol, Interval: interval.String(), Latest: latest, SessionStart: start}
}

// FreshDaily accepts a daily series whose newest bar is no older than
// DailyMaxAge before the previous trading day. It applies whether or not the
// market is open.
func FreshDaily(cal TradingDays, symbol string) func(candle.Series) error {
	return func(s candle.Series) error {
		if cal == nil {
			return nil
		}
		cutoff := cal.PreviousTradingDay(cal.Now()).Add(-DailyMaxAge)
		latest := Newest(s)
		if !latest.IsZero() && !latest.Before(cutoff) {
			return nil
		}
		return &StaleDataError{Symbol: symbol, Interval: candle.Daily.String(), Latest: latest, SessionStart: cutoff}
	}
}

// Newest returns the latest timestamp in s, scanning every row.
func Newest(s candle.Series) time.Time {
	var latest time.Time
	for _, c := range s {
		if c.Timestamp.After(latest) {
			latest = c.Timestamp
		}
	}
	return latest
}
