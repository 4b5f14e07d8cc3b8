package candle

import (
	"sort"
)

// Normalize validates raw provider rows and returns an ascending, de-duplicated
// series. Invalid rows are dropped and reported. When several rows share a
// timestamp the last one seen wins.
func Normalize(raw []Candle) (Series, RowErrors) {
	var dropped RowErrors
	kept := make(Series, 0, len(raw))
	for i, c := range raw {
		c.Timestamp = FloorMinute(c.Timestamp)
		if err := c.Validate(); err != nil {
			dropped = append(dropped, RowError{Row: i + 1, Timestamp: c.Timestamp, Reason: err.Error()})
			continue
		}
		kept = append(kept, c)
	}
	return canonicalize(kept), dropped
}

// canonicalize sorts in place and keeps the last row of each timestamp.
func canonicalize(kept Series) Series {
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	out := kept[:0]
	for i := 0; i < len(kept); i++ {
		if i+1 < len(kept) && kept[i+1].Timestamp.Equal(kept[i].Timestamp) {
			continue
		}
		out = append(out, kept[i])
	}
	return out
}

// IsCanonical reports whether s is strictly ascending with unique timestamps.
func IsCanonical(s Series) bool {
	for i := 1; i < len(s); i++ {
		if !s[i-1].Timestamp.Before(s[i].Timestamp) {
			return false
		}
	}
	return true
}
