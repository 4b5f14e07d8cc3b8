// Package candletest builds realistic series for tests.
package candletest

import (
	"time"

	"candlekeep/pkg/candle"
)

// Minutes returns n one-minute bars starting at start with prices around base.
func Minutes(start time.Time, n int, base float64) candle.Series {
	return Bars(start, n, time.Minute, base)
}

// Bars returns n bars spaced by step.
func Bars(start time.Time, n int, step time.Duration, base float64) candle.Series {
	out := make(candle.Series, 0, n)
	for i := 0; i < n; i++ {
		p := base + float64(i%13)*0.25
		out = append(out, candle.Candle{
			Timestamp: start.Add(time.Duration(i) * step).UTC(),
			Open:      p,
			High:      p + 0.75,
			Low:       p - 0.5,
			Close:     p + 0.25,
			Volume:    int64(1000 + i*7),
		})
	}
	return out
}

// Sessions spreads perSession one-minute bars from each session open in opens.
func Sessions(opens []time.Time, perSession int, base float64) candle.Series {
	out := make(candle.Series, 0, len(opens)*perSession)
	for _, open := range opens {
		out = append(out, Minutes(open, perSession, base)...)
	}
	return out
}

// July2024Opens lists 13:30 UTC regular opens for the seven sessions
// 2024-07-01..2024-07-10, skipping the Independence Day holiday and the weekend.
func July2024Opens() []time.Time {
	days := []int{1, 2, 3, 5, 8, 9, 10}
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, time.Date(2024, 7, d, 13, 30, 0, 0, time.UTC))
	}
	return out
}
