package compact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/fullfetch"
	"candlekeep/internal/health"
	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
	"candlekeep/pkg/retry"
	"candlekeep/pkg/store"
)

// Rebuilder bootstraps a series from the provider's full history.
type Rebuilder interface {
	Rebuild(ctx context.Context, symbol string, interval candle.Interval) (fullfetch.Result, error)
}

// Calendar is what the engine needs from the market calendar.
type Calendar interface {
	retry.SessionCalendar
	candle.SessionClock
}

// Engine merges the latest quote into the stored 1min series and re-derives
// the 30min series from it.
type Engine struct {
	health    health.Checker
	rebuilder Rebuilder
	provider  market.Provider
	series    *store.SeriesStore
	retry     *retry.Controller
	calendar  Calendar
	retention candle.Retention
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Health    health.Checker
	Rebuilder Rebuilder
	Provider  market.Provider
	Series    *store.SeriesStore
	Retry     *retry.Controller
	Calendar  Calendar
	Retention candle.Retention
}

// New wires the engine.
func New(d Deps) *Engine {
	return &Engine{
		health:    d.Health,
		rebuilder: d.Rebuilder,
		provider:  d.Provider,
		series:    d.Series,
		retry:     d.Retry,
		calendar:  d.Calendar,
		retention: d.Retention,
	}
}

// cycle carries the working data of one Apply call between states.
type cycle struct {
	summary Summary
	quote   *market.Quote
	history candle.Series
	merged  candle.Series
	minute  candle.Series
	thirty  candle.Series
	logger  logx.Logger
}

type step func(ctx context.Context, c *cycle) (State, error)

func (e *Engine) steps() map[State]step {
	return map[State]step{
		HealthGate:  e.healthGate,
		FetchQuote:  e.fetchQuote,
		LoadHistory: e.loadHistory,
		Merge:       e.merge,
		Persist1m:   e.persist1m,
		Resample30:  e.resample30,
		Persist30m:  e.persist30m,
	}
}

// Apply runs one compact update cycle for symbol. The returned Summary is
// always populated; err is non-nil only when the machine ends in Failed.
func (e *Engine) Apply(ctx context.Context, symbol string) (Summary, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	c := &cycle{
		summary: Summary{Symbol: symbol, State: HealthGate},
		logger:  logx.WithContext(ctx).WithFields(logx.Field("symbol", symbol)),
	}
	steps := e.steps()
	state := HealthGate
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return e.fail(c, state, err)
		}
		next, err := steps[state](ctx, c)
		if err != nil {
			return e.fail(c, state, err)
		}
		c.logger.Debugf("compact: %s -> %s", state, next)
		state = next
	}
	c.summary.State = state
	return c.summary, nil
}

func (e *Engine) fail(c *cycle, state State, err error) (Summary, error) {
	c.summary.State = Failed
	wrapped := &Error{Symbol: c.summary.Symbol, State: state, Err: err}
	c.logger.Errorf("compact: failed in %s err=%v", state, err)
	return c.summary, wrapped
}

func (e *Engine) healthGate(ctx context.Context, c *cycle) (State, error) {
	symbol := c.summary.Symbol
	var unhealthy []health.Status
	for _, interval := range []candle.Interval{candle.OneMinute, candle.ThirtyMinute} {
		if st := e.health.Check(ctx, symbol, interval); !st.Healthy() {
			unhealthy = append(unhealthy, st)
		}
	}
	if len(unhealthy) == 0 {
		return FetchQuote, nil
	}

	for _, st := range unhealthy {
		c.logger.Infof("compact: %s %s (%s)", st.Interval, st.State, st.Reason)
	}
	c.logger.Info("full fetch required for this ticker")

	for _, interval := range []candle.Interval{candle.OneMinute, candle.ThirtyMinute} {
		res, err := e.rebuilder.Rebuild(ctx, symbol, interval)
		if err != nil {
			return Failed, fmt.Errorf("bootstrap %s: %w", interval, err)
		}
		if interval == candle.OneMinute {
			c.summary.Rows1m = res.Rows
		} else {
			c.summary.Rows30m = res.Rows
		}
	}
	c.summary.Action = Bootstrapped

	if st := e.health.Check(ctx, symbol, candle.OneMinute); !st.Healthy() {
		c.summary.Note = fmt.Sprintf("1min still %s after rebuild: %s", st.State, st.Reason)
		c.logger.Infof("compact: %s", c.summary.Note)
	}
	return Skipped, nil
}

func (e *Engine) fetchQuote(ctx context.Context, c *cycle) (State, error) {
	symbol := c.summary.Symbol
	q, err := retry.Do(ctx, e.retry,
		retry.Target{Symbol: symbol, Interval: candle.OneMinute.String(), Op: "quote"},
		func(ctx context.Context) (*market.Quote, error) {
			return e.provider.LatestQuote(ctx, symbol)
		},
		func(q *market.Quote) error {
			if q == nil || q.Price <= 0 {
				return &market.PayloadError{Provider: "provider", Symbol: symbol, Message: "quote without price", Err: market.ErrEmptyPayload}
			}
			return retry.CheckSession(e.calendar, symbol, candle.OneMinute, q.Timestamp)
		},
	)
	if err != nil {
		return Failed, err
	}
	c.quote = q
	return LoadHistory, nil
}

func (e *Engine) loadHistory(ctx context.Context, c *cycle) (State, error) {
	s, dropped, err := e.series.Load(ctx, c.summary.Symbol, candle.OneMinute)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failed, fmt.Errorf("1min series vanished after health gate: %w", err)
		}
		return Failed, err
	}
	if len(dropped) > 0 {
		c.logger.Infof("compact: dropped %d invalid stored rows: %v", len(dropped), dropped)
	}
	c.history = s
	return Merge, nil
}

func (e *Engine) merge(_ context.Context, c *cycle) (State, error) {
	tick := c.quote.Tick()
	merged, action := candle.Merge(c.history, tick)
	c.summary.Action = Action(action)
	c.summary.Rows1m = len(c.history)
	if action == candle.Discarded {
		last, _ := c.history.Last()
		c.logger.Infof("compact: quote at %s not after last candle %s, discarded",
			tick.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))
		return Done, nil
	}
	c.merged = merged
	return Persist1m, nil
}

func (e *Engine) persist1m(ctx context.Context, c *cycle) (State, error) {
	c.minute = candle.Trim(c.merged, candle.OneMinute, e.retention, e.calendar)
	if err := e.series.Save(ctx, c.summary.Symbol, candle.OneMinute, c.minute); err != nil {
		return Failed, err
	}
	c.summary.Rows1m = len(c.minute)
	return Resample30, nil
}

func (e *Engine) resample30(_ context.Context, c *cycle) (State, error) {
	c.thirty = candle.Trim(candle.Resample30(c.minute), candle.ThirtyMinute, e.retention, e.calendar)
	return Persist30m, nil
}

func (e *Engine) persist30m(ctx context.Context, c *cycle) (State, error) {
	if err := e.series.Save(ctx, c.summary.Symbol, candle.ThirtyMinute, c.thirty); err != nil {
		return Failed, err
	}
	c.summary.Rows30m = len(c.thirty)
	c.logger.Infof("compact: %s rows1m=%d rows30m=%d", c.summary.Action, c.summary.Rows1m, c.summary.Rows30m)
	return Done, nil
}
