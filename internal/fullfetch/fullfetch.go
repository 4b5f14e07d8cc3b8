package fullfetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
	"candlekeep/pkg/retry"
	"candlekeep/pkg/store"
)

// ErrNoRows is returned when nothing survives validation and trimming. A
// rebuild that would persist an empty series is never reported as success.
var ErrNoRows = errors.New("fullfetch: zero rows after trim")

// Calendar is what the engine needs from the market calendar.
type Calendar interface {
	retry.SessionCalendar
	retry.TradingDays
	candle.SessionClock
}

// Result describes one persisted rebuild.
type Result struct {
	Symbol   string          `json:"symbol"`
	Interval candle.Interval `json:"interval"`
	Rows     int             `json:"rows"`
	Dropped  int             `json:"dropped"`
}

// Engine replaces a stored series with the provider's full history.
type Engine struct {
	provider  market.Provider
	series    *store.SeriesStore
	retry     *retry.Controller
	calendar  Calendar
	retention candle.Retention
}

// New wires the engine.
func New(provider market.Provider, series *store.SeriesStore, ctrl *retry.Controller, cal Calendar, retention candle.Retention) *Engine {
	return &Engine{
		provider:  provider,
		series:    series,
		retry:     ctrl,
		calendar:  cal,
		retention: retention,
	}
}

// Rebuild fetches, validates, canonicalises, trims and overwrites one series.
// It is idempotent and touches nothing but the (symbol, interval) blob.
func (e *Engine) Rebuild(ctx context.Context, symbol string, interval candle.Interval) (Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	res := Result{Symbol: symbol, Interval: interval}
	logger := logx.WithContext(ctx).WithFields(logx.Field("symbol", symbol), logx.Field("interval", interval.String()))

	bars, err := retry.Do(ctx, e.retry,
		retry.Target{Symbol: symbol, Interval: interval.String(), Op: "history"},
		func(ctx context.Context) (market.Bars, error) {
			return e.provider.History(ctx, symbol, interval)
		},
		e.validator(symbol, interval),
	)
	if err != nil {
		return res, fmt.Errorf("fullfetch: fetch %s %s: %w", symbol, interval, err)
	}

	series, invalid := candle.Normalize(bars.Series)
	dropped := append(append(candle.RowErrors(nil), bars.Dropped...), invalid...)
	res.Dropped = len(dropped)
	if len(dropped) > 0 {
		logger.Infof("fullfetch: dropped %d invalid rows: %v", len(dropped), dropped)
	}

	series = candle.Trim(series, interval, e.retention, e.calendar)
	if len(series) == 0 {
		return res, fmt.Errorf("fullfetch: %s %s: %w", symbol, interval, ErrNoRows)
	}

	if err := e.series.Save(ctx, symbol, interval, series); err != nil {
		return res, fmt.Errorf("fullfetch: persist %s %s: %w", symbol, interval, err)
	}
	res.Rows = len(series)
	logger.Infof("fullfetch: rebuilt rows=%d dropped=%d", res.Rows, res.Dropped)
	return res, nil
}

// validator rejects empty payloads and stale ones: intraday data must reach
// the current session while the market is trading, daily data must be
// recent relative to the previous trading day.
func (e *Engine) validator(symbol string, interval candle.Interval) func(market.Bars) error {
	fresh := retry.Fresh(e.calendar, symbol, interval)
	if interval == candle.Daily {
		fresh = retry.FreshDaily(e.calendar, symbol)
	}
	return func(b market.Bars) error {
		if len(b.Series) == 0 {
			return &market.PayloadError{Provider: "provider", Symbol: symbol, Message: "no bars returned", Err: market.ErrEmptyPayload}
		}
		return fresh(b.Series)
	}
}

// RebuildAll rebuilds daily, 30min and 1min in turn. A failing interval does
// not stop the others; the joined error lists every failure.
func (e *Engine) RebuildAll(ctx context.Context, symbol string) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for _, interval := range []candle.Interval{candle.Daily, candle.ThirtyMinute, candle.OneMinute} {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := e.Rebuild(ctx, symbol, interval)
		if err != nil {
			logx.WithContext(ctx).Errorf("fullfetch: rebuild failed symbol=%s interval=%s err=%v", symbol, interval, err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
