package candle

import "time"

// SessionClock resolves trading-session boundaries for retention.
type SessionClock interface {
	// TradingSessionsAgo returns the start of the n-th most recent trading
	// session, counting the current (or last completed) session as 1.
	TradingSessionsAgo(n int) time.Time
}

// Retention bounds how much history each interval keeps.
type Retention struct {
	MinuteSessions int `json:",default=7"`
	ThirtyMinRows  int `json:",default=500"`
	DailyRows      int `json:",default=200"`
}

// DefaultRetention mirrors the production dataset contract.
var DefaultRetention = Retention{
	MinuteSessions: 7,
	ThirtyMinRows:  500,
	DailyRows:      200,
}

func (r Retention) withDefaults() Retention {
	if r.MinuteSessions <= 0 {
		r.MinuteSessions = DefaultRetention.MinuteSessions
	}
	if r.ThirtyMinRows <= 0 {
		r.ThirtyMinRows = DefaultRetention.ThirtyMinRows
	}
	if r.DailyRows <= 0 {
		r.DailyRows = DefaultRetention.DailyRows
	}
	return r
}

// Trim applies the retention window for interval. It is idempotent.
func Trim(s Series, interval Interval, r Retention, clock SessionClock) Series {
	r = r.withDefaults()
	switch interval {
	case Daily:
		return tail(s, r.DailyRows)
	case ThirtyMinute:
		return tail(s, r.ThirtyMinRows)
	case OneMinute:
		if clock == nil {
			return s
		}
		return s.Since(clock.TradingSessionsAgo(r.MinuteSessions))
	default:
		return s
	}
}

func tail(s Series, n int) Series {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
