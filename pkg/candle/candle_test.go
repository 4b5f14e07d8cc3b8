package candle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock time.Time

func (c fixedClock) TradingSessionsAgo(int) time.Time { return time.Time(c) }

func minute(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func flatSeries(start time.Time, n int, step time.Duration) Series {
	out := make(Series, 0, n)
	for i := 0; i < n; i++ {
		p := 100 + float64(i%7)
		out = append(out, Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      p,
			High:      p + 1,
			Low:       p - 1,
			Close:     p + 0.5,
			Volume:    int64(100 + i),
		})
	}
	return out
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want Interval
	}{
		{"1min", OneMinute},
		{"1M", OneMinute},
		{"30min", ThirtyMinute},
		{"intraday_30min", ThirtyMinute},
		{"daily", Daily},
		{" 1d ", Daily},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ParseInterval("5min")
	require.Error(t, err)
}

func TestIntervalFolder(t *testing.T) {
	assert.Equal(t, "intraday", OneMinute.Folder())
	assert.Equal(t, "intraday_30min", ThirtyMinute.Folder())
	assert.Equal(t, "daily", Daily.Folder())
}

func TestCandleValidate(t *testing.T) {
	ts := minute(t, "2024-03-04T14:30:00Z")
	tests := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{"valid", Candle{Timestamp: ts, Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 1000}, false},
		{"high below close", Candle{Timestamp: ts, Open: 10, High: 10, Low: 9.9, Close: 10.1}, true},
		{"low above open", Candle{Timestamp: ts, Open: 10, High: 10.2, Low: 10.05, Close: 10.1}, true},
		{"zero price", Candle{Timestamp: ts, Open: 0, High: 10.2, Low: 0, Close: 10.1}, true},
		{"negative volume", Candle{Timestamp: ts, Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: -1}, true},
		{"missing timestamp", Candle{Open: 10, High: 10.2, Low: 9.9, Close: 10.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candle.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNormalizeSortsDedupesAndDrops(t *testing.T) {
	base := minute(t, "2024-03-04T14:30:00Z")
	raw := []Candle{
		{Timestamp: base.Add(2 * time.Minute), Open: 3, High: 3, Low: 3, Close: 3},
		{Timestamp: base, Open: 1, High: 1, Low: 1, Close: 1},
		{Timestamp: base.Add(time.Minute), Open: 2, High: 2, Low: 2, Close: 2},
		{Timestamp: base.Add(30 * time.Second), Open: 9, High: 9, Low: 9, Close: 9, Volume: 7},
		{Timestamp: base.Add(3 * time.Minute), Open: 5, High: 4, Low: 4, Close: 5},
	}

	series, dropped := Normalize(raw)
	require.Len(t, dropped, 1)
	require.Equal(t, 5, dropped[0].Row)
	require.True(t, IsCanonical(series))
	require.Len(t, series, 3)

	// 14:30:30 floors to 14:30 and is seen after the 14:30 row, so it wins.
	require.Equal(t, base, series[0].Timestamp)
	require.Equal(t, 9.0, series[0].Close)
	require.Equal(t, int64(7), series[0].Volume)
}

func TestMergeSameMinuteUpdatesInPlace(t *testing.T) {
	ts := minute(t, "2024-03-04T14:30:00Z")
	series := Series{{Timestamp: ts, Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 1000}}

	merged, action := Merge(series, Tick{Timestamp: ts.Add(40 * time.Second), Price: 10.3})
	require.Equal(t, UpdatedInPlace, action)
	require.Len(t, merged, 1)
	require.Equal(t, Candle{Timestamp: ts, Open: 10, High: 10.3, Low: 9.9, Close: 10.3, Volume: 1000}, merged[0])

	// input untouched
	require.Equal(t, 10.2, series[0].High)
}

func TestMergeSameMinuteLowerPrice(t *testing.T) {
	ts := minute(t, "2024-03-04T14:30:00Z")
	series := Series{{Timestamp: ts, Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 1000}}

	merged, action := Merge(series, Tick{Timestamp: ts.Add(10 * time.Second), Price: 9.5, Volume: 25, Incremental: true})
	require.Equal(t, UpdatedInPlace, action)
	assert.Equal(t, 10.0, merged[0].Open)
	assert.Equal(t, 10.2, merged[0].High)
	assert.Equal(t, 9.5, merged[0].Low)
	assert.Equal(t, 9.5, merged[0].Close)
	assert.Equal(t, int64(1025), merged[0].Volume)
}

func TestMergeNewMinuteAppends(t *testing.T) {
	ts := minute(t, "2024-03-04T14:30:00Z")
	series := Series{{Timestamp: ts, Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 1000}}

	merged, action := Merge(series, Tick{Timestamp: ts.Add(90 * time.Second), Price: 10.4, Volume: 50})
	require.Equal(t, Appended, action)
	require.Len(t, merged, 2)
	require.Equal(t, Candle{Timestamp: ts.Add(time.Minute), Open: 10.4, High: 10.4, Low: 10.4, Close: 10.4, Volume: 50}, merged[1])
	require.Len(t, series, 1)
}

func TestMergeOlderTickDiscarded(t *testing.T) {
	ts := minute(t, "2024-03-04T14:30:00Z")
	series := Series{{Timestamp: ts, Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 1000}}

	merged, action := Merge(series, Tick{Timestamp: ts.Add(-time.Minute), Price: 50})
	require.Equal(t, Discarded, action)
	require.Equal(t, series, merged)
}

func TestMergeIntoEmptySeries(t *testing.T) {
	ts := minute(t, "2024-03-04T14:30:00Z")
	merged, action := Merge(nil, Tick{Timestamp: ts, Price: 10})
	require.Equal(t, Appended, action)
	require.Len(t, merged, 1)
}

func TestResample30(t *testing.T) {
	start := minute(t, "2024-03-04T14:30:00Z")
	one := Series{
		{Timestamp: start, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Timestamp: start.Add(1 * time.Minute), Open: 10.5, High: 12, Low: 10, Close: 11, Volume: 200},
		{Timestamp: start.Add(29 * time.Minute), Open: 11, High: 11.5, Low: 8, Close: 9, Volume: 300},
		{Timestamp: start.Add(30 * time.Minute), Open: 9, High: 9.5, Low: 8.5, Close: 9.2, Volume: 400},
	}

	thirty := Resample30(one)
	require.Len(t, thirty, 2)
	require.Equal(t, Candle{Timestamp: start, Open: 10, High: 12, Low: 8, Close: 9, Volume: 600}, thirty[0])
	require.Equal(t, Candle{Timestamp: start.Add(30 * time.Minute), Open: 9, High: 9.5, Low: 8.5, Close: 9.2, Volume: 400}, thirty[1])
}

func TestResampleIsDeterministic(t *testing.T) {
	one := flatSeries(minute(t, "2024-03-04T09:00:00Z"), 900, time.Minute)
	a := Encode(Resample30(one))
	b := Encode(Resample30(one.Clone()))
	require.Equal(t, a, b)
}

func TestResampleBucketsAlignToSessionOpen(t *testing.T) {
	// 09:30 ET during daylight saving time is 13:30 UTC.
	open := minute(t, "2024-07-01T13:30:00Z")
	one := flatSeries(open.Add(-5*time.Minute), 10, time.Minute)
	thirty := Resample30(one)
	require.Len(t, thirty, 2)
	require.Equal(t, open.Add(-30*time.Minute), thirty[0].Timestamp)
	require.Equal(t, open, thirty[1].Timestamp)
}

func TestTrimIdempotent(t *testing.T) {
	start := minute(t, "2024-01-02T14:30:00Z")
	cutoff := start.Add(3 * 24 * time.Hour)
	clock := fixedClock(cutoff)

	tests := []struct {
		interval Interval
		series   Series
		wantLen  int
	}{
		{Daily, flatSeries(start, 250, 24*time.Hour), 200},
		{ThirtyMinute, flatSeries(start, 650, 30*time.Minute), 500},
		{OneMinute, flatSeries(start, 6000, time.Minute), 6000 - 3*24*60},
	}
	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			once := Trim(tt.series, tt.interval, DefaultRetention, clock)
			twice := Trim(once, tt.interval, DefaultRetention, clock)
			require.Len(t, once, tt.wantLen)
			require.Equal(t, once, twice)
			last, _ := tt.series.Last()
			gotLast, _ := once.Last()
			require.Equal(t, last, gotLast)
		})
	}
}

func TestTrimOneMinuteKeepsBoundary(t *testing.T) {
	start := minute(t, "2024-01-02T14:30:00Z")
	series := flatSeries(start, 10, time.Minute)
	trimmed := Trim(series, OneMinute, DefaultRetention, fixedClock(start.Add(4*time.Minute)))
	require.Len(t, trimmed, 6)
	require.Equal(t, start.Add(4*time.Minute), trimmed[0].Timestamp)
}

func TestRowErrorsMessage(t *testing.T) {
	errs := RowErrors{
		{Row: 2, Reason: "a"},
		{Row: 3, Reason: "b"},
		{Row: 4, Reason: "c"},
		{Row: 5, Reason: "d"},
	}
	require.Contains(t, errs.Error(), "4 rows dropped")
	require.Contains(t, errs.Error(), "and 1 more")
}
