package candle

import (
	"math"
	"time"
)

// Resample groups an ascending series into fixed-width buckets labelled by
// their start time. Buckets are aligned to UTC multiples of width; for widths
// that divide an hour this matches US equity session boundaries (04:00, 09:30,
// 16:00 ET) regardless of daylight saving.
func Resample(s Series, width time.Duration) Series {
	if len(s) == 0 || width <= 0 {
		return Series{}
	}
	out := make(Series, 0, len(s)/int(math.Max(1, float64(width/time.Minute)))+1)
	var cur *Candle
	for _, c := range s {
		bucket := c.Timestamp.UTC().Truncate(width)
		if cur == nil || !cur.Timestamp.Equal(bucket) {
			out = append(out, Candle{
				Timestamp: bucket,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			})
			cur = &out[len(out)-1]
			continue
		}
		cur.High = math.Max(cur.High, c.High)
		cur.Low = math.Min(cur.Low, c.Low)
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	return out
}

// Resample30 derives the 30-minute series from a 1-minute series.
func Resample30(s Series) Series {
	return Resample(s, ThirtyMinute.Duration())
}
