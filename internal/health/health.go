package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/pkg/candle"
	"candlekeep/pkg/store"
)

// State classifies a stored series.
type State string

const (
	Healthy   State = "healthy"
	Missing   State = "missing"
	Deficient State = "deficient"
)

// Status is computed on demand and never persisted.
type Status struct {
	Symbol   string          `json:"symbol"`
	Interval candle.Interval `json:"interval"`
	State    State           `json:"state"`
	Reason   string          `json:"reason,omitempty"`
	Rows     int             `json:"rows"`
	Bytes    int             `json:"bytes"`
	// UpdatedAt is the last write time, when the store records one.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Healthy reports whether the series can be updated incrementally.
func (s Status) Healthy() bool { return s.State == Healthy }

// Thresholds sets the minimum blob size and well-formed row count per interval.
type Thresholds struct {
	MinuteBytes    int `json:",default=50000"`
	MinuteRows     int `json:",default=1000"`
	ThirtyMinBytes int `json:",default=2048"`
	ThirtyMinRows  int `json:",default=60"`
	DailyBytes     int `json:",default=2048"`
	DailyRows      int `json:",default=50"`
}

// DefaultThresholds mirrors the config defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinuteBytes:    50000,
		MinuteRows:     1000,
		ThirtyMinBytes: 2048,
		ThirtyMinRows:  60,
		DailyBytes:     2048,
		DailyRows:      50,
	}
}

// For returns (minBytes, minRows) for interval.
func (t Thresholds) For(interval candle.Interval) (int, int) {
	switch interval {
	case candle.OneMinute:
		return t.MinuteBytes, t.MinuteRows
	case candle.ThirtyMinute:
		return t.ThirtyMinBytes, t.ThirtyMinRows
	default:
		return t.DailyBytes, t.DailyRows
	}
}

// Checker is the read-only health contract used by the update engines.
type Checker interface {
	Check(ctx context.Context, symbol string, interval candle.Interval) Status
}

// Monitor classifies stored series against Thresholds.
type Monitor struct {
	series     *store.SeriesStore
	thresholds Thresholds
}

// NewMonitor builds a monitor over series.
func NewMonitor(series *store.SeriesStore, thresholds Thresholds) *Monitor {
	return &Monitor{series: series, thresholds: thresholds}
}

// Check never returns an error: read failures classify as Missing so the
// caller bootstraps the series instead of skipping it.
func (m *Monitor) Check(ctx context.Context, symbol string, interval candle.Interval) Status {
	st := Status{Symbol: symbol, Interval: interval}
	data, err := m.series.Raw(ctx, symbol, interval)
	switch {
	case errors.Is(err, store.ErrNotFound):
		st.State, st.Reason = Missing, "no stored series"
		return st
	case err != nil:
		logx.WithContext(ctx).Errorf("health: read failed symbol=%s interval=%s err=%v", symbol, interval, err)
		st.State, st.Reason = Missing, fmt.Sprintf("store read failed: %v", err)
		return st
	}
	if at, ok := m.series.UpdatedAt(ctx, symbol, interval); ok {
		st.UpdatedAt = &at
	}
	return m.classify(st, data)
}

func (m *Monitor) classify(st Status, data []byte) Status {
	minBytes, minRows := m.thresholds.For(st.Interval)
	st.Bytes = len(data)

	header, err := candle.Header(data)
	if err != nil || !candle.HasColumns(header) {
		st.State, st.Reason = Deficient, "missing required columns"
		return st
	}
	series, _, err := candle.Decode(data)
	if err != nil {
		st.State, st.Reason = Deficient, err.Error()
		return st
	}
	st.Rows = len(series)
	if st.Bytes < minBytes {
		st.State, st.Reason = Deficient, fmt.Sprintf("size %d below %d bytes", st.Bytes, minBytes)
		return st
	}
	if st.Rows < minRows {
		st.State, st.Reason = Deficient, fmt.Sprintf("%d rows below minimum %d", st.Rows, minRows)
		return st
	}
	st.State = Healthy
	return st
}

// CheckAll classifies every interval of symbol.
func (m *Monitor) CheckAll(ctx context.Context, symbol string) []Status {
	out := make([]Status, 0, len(candle.Intervals()))
	for _, interval := range candle.Intervals() {
		out = append(out, m.Check(ctx, symbol, interval))
	}
	return out
}
