package candle

import (
	"math"
	"time"
)

// Tick is a single live price observation.
type Tick struct {
	Timestamp time.Time
	Price     float64
	Volume    int64
	// Incremental marks Volume as traded since the previous tick rather than
	// a cumulative or unknown figure.
	Incremental bool
}

// MergeAction describes what Merge did with a tick.
type MergeAction string

const (
	Appended       MergeAction = "appended"
	UpdatedInPlace MergeAction = "updated_in_place"
	Discarded      MergeAction = "discarded"
)

// Merge folds a tick into a 1-minute series. The input is never mutated.
//
// Same minute as the last candle: high/low widen, close moves, open stays and
// volume is carried over unless the tick reports incremental volume.
// A newer minute appends a flat candle. Anything older is discarded.
func Merge(s Series, t Tick) (Series, MergeAction) {
	if t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return s, Discarded
	}
	minute := FloorMinute(t.Timestamp)
	volume := t.Volume
	if volume < 0 {
		volume = 0
	}

	last, ok := s.Last()
	if !ok || minute.After(last.Timestamp) {
		out := make(Series, len(s), len(s)+1)
		copy(out, s)
		out = append(out, Candle{
			Timestamp: minute,
			Open:      t.Price,
			High:      t.Price,
			Low:       t.Price,
			Close:     t.Price,
			Volume:    volume,
		})
		return out, Appended
	}
	if !minute.Equal(last.Timestamp) {
		return s, Discarded
	}

	out := s.Clone()
	c := &out[len(out)-1]
	c.High = math.Max(c.High, t.Price)
	c.Low = math.Min(c.Low, t.Price)
	c.Close = t.Price
	if t.Incremental && volume > 0 {
		c.Volume += volume
	}
	return out, UpdatedInPlace
}
