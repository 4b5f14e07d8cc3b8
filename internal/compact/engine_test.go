package compact

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlekeep/internal/fullfetch"
	"candlekeep/internal/health"
	"candlekeep/pkg/calendar"
	"candlekeep/pkg/candle"
	"candlekeep/pkg/candle/candletest"
	"candlekeep/pkg/market"
	"candlekeep/pkg/market/alphavantage"
	"candlekeep/pkg/market/markettest"
	"candlekeep/pkg/retry"
	"candlekeep/pkg/store"
)

// fixedClock is a closed market: quotes are never rejected as stale.
type fixedClock time.Time

func (c fixedClock) TradingSessionsAgo(int) time.Time { return time.Time(c) }
func (c fixedClock) IsTradingNow() bool               { return false }
func (c fixedClock) CurrentSessionStart() time.Time   { return time.Time(c) }

type stubHealth struct {
	mu     sync.Mutex
	states map[candle.Interval]health.State
	checks int
}

func (h *stubHealth) Check(_ context.Context, symbol string, interval candle.Interval) health.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks++
	st, ok := h.states[interval]
	if !ok {
		st = health.Healthy
	}
	return health.Status{Symbol: symbol, Interval: interval, State: st}
}

func (h *stubHealth) set(interval candle.Interval, st health.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[interval] = st
}

type stubRebuilder struct {
	mu    sync.Mutex
	calls []candle.Interval
	err   error
	after func(candle.Interval)
}

func (r *stubRebuilder) Rebuild(_ context.Context, symbol string, interval candle.Interval) (fullfetch.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, interval)
	r.mu.Unlock()
	if r.err != nil {
		return fullfetch.Result{}, r.err
	}
	if r.after != nil {
		r.after(interval)
	}
	return fullfetch.Result{Symbol: symbol, Interval: interval, Rows: 1234}, nil
}

type harness struct {
	engine   *Engine
	health   *stubHealth
	rebuild  *stubRebuilder
	provider *markettest.Fake
	mem      *store.Memory
	series   *store.SeriesStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, markettest.New(), fixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func newHarnessWith(t *testing.T, provider market.Provider, cal Calendar) *harness {
	t.Helper()
	h := &harness{
		health:  &stubHealth{states: map[candle.Interval]health.State{}},
		rebuild: &stubRebuilder{},
		mem:     store.NewMemory(),
	}
	if fake, ok := provider.(*markettest.Fake); ok {
		h.provider = fake
	}
	h.series = store.NewSeriesStore(h.mem, "data")
	h.engine = New(Deps{
		Health:    h.health,
		Rebuilder: h.rebuild,
		Provider:  provider,
		Series:    h.series,
		Retry:     retry.New(retry.Policy{}, retry.WithSleep(func(context.Context, time.Duration) error { return nil })),
		Calendar:  cal,
		Retention: candle.DefaultRetention,
	})
	return h
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func (h *harness) seed(t *testing.T, s candle.Series) {
	t.Helper()
	require.NoError(t, h.series.Save(context.Background(), "AAPL", candle.OneMinute, s))
}

func (h *harness) load(t *testing.T, interval candle.Interval) candle.Series {
	t.Helper()
	s, _, err := h.series.Load(context.Background(), "AAPL", interval)
	require.NoError(t, err)
	return s
}

func TestApplySameMinuteScenario(t *testing.T) {
	h := newHarness(t)
	h.seed(t, candle.Series{{Timestamp: at(t, "2024-07-01T13:30:00Z"), Open: 10, High: 10.2, Low: 9.9, Close: 10.1, Volume: 1000}})
	h.provider.SetQuote(market.Quote{Symbol: "AAPL", Price: 10.3, Timestamp: at(t, "2024-07-01T13:30:40Z")})

	sum, err := h.engine.Apply(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, Done, sum.State)
	assert.Equal(t, UpdatedInPlace, sum.Action)
	assert.Equal(t, 1, sum.Rows1m)
	assert.Equal(t, 1, sum.Rows30m)

	got := h.load(t, candle.OneMinute)
	require.Len(t, got, 1)
	assert.Equal(t, candle.Candle{Timestamp: at(t, "2024-07-01T13:30:00Z"), Open: 10, High: 10.3, Low: 9.9, Close: 10.3, Volume: 1000}, got[0])
}

func TestApplyNewMinuteAppendsAndResamples(t *testing.T) {
	h := newHarness(t)
	h.seed(t, candletest.Minutes(at(t, "2024-07-01T13:30:00Z"), 31, 50))
	h.provider.SetQuote(market.Quote{Symbol: "AAPL", Price: 51, Timestamp: at(t, "2024-07-01T14:01:05Z"), Volume: 42})

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Appended, sum.Action)
	assert.Equal(t, 32, sum.Rows1m)

	minute := h.load(t, candle.OneMinute)
	last, _ := minute.Last()
	assert.Equal(t, candle.Candle{Timestamp: at(t, "2024-07-01T14:01:00Z"), Open: 51, High: 51, Low: 51, Close: 51, Volume: 42}, last)

	thirty := h.load(t, candle.ThirtyMinute)
	assert.Equal(t, candle.Resample30(minute), thirty, "30min derives strictly from persisted 1min")
	require.Len(t, thirty, 2)
	assert.Equal(t, at(t, "2024-07-01T14:00:00Z"), thirty[1].Timestamp)
}

func TestApplyOutOfOrderQuoteDiscarded(t *testing.T) {
	h := newHarness(t)
	h.seed(t, candletest.Minutes(at(t, "2024-07-01T13:30:00Z"), 5, 50))
	putsBefore := h.mem.Puts()
	h.provider.SetQuote(market.Quote{Symbol: "AAPL", Price: 49, Timestamp: at(t, "2024-07-01T13:32:10Z")})

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Done, sum.State)
	assert.Equal(t, Discarded, sum.Action)
	assert.Equal(t, putsBefore, h.mem.Puts(), "discarded quote writes nothing")
}

// quoteServer serves a GLOBAL_QUOTE reporting latestDay and counts requests.
func quoteServer(t *testing.T, price, latestDay string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprintf(w, `{"Global Quote": {"01. symbol": "AAPL", "05. price": %q, "06. volume": "1200", "07. latest trading day": %q}}`, price, latestDay)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func clientAt(t *testing.T, srv *httptest.Server, now time.Time) (*alphavantage.Client, *calendar.Calendar) {
	t.Helper()
	clock := func() time.Time { return now }
	client, err := alphavantage.NewClient("demo",
		alphavantage.WithBaseURL(srv.URL),
		alphavantage.WithCallsPerMinute(0),
		alphavantage.WithMaxRetries(0),
		alphavantage.WithClock(clock),
	)
	require.NoError(t, err)
	cal, err := calendar.New(calendar.WithClock(clock))
	require.NoError(t, err)
	return client, cal
}

func TestApplyPriorSessionQuoteInPreMarketIsStale(t *testing.T) {
	// Monday 2024-07-01 04:05 ET; the provider still reports Friday.
	srv, hits := quoteServer(t, "55.10", "2024-06-28")
	client, cal := clientAt(t, srv, at(t, "2024-07-01T08:05:00Z"))
	h := newHarnessWith(t, client, cal)
	h.seed(t, candletest.Minutes(at(t, "2024-06-28T23:00:00Z"), 60, 50))
	putsBefore := h.mem.Puts()

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, Failed, sum.State)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, FetchQuote, ce.State)
	var stale *retry.StaleDataError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, at(t, "2024-06-28T20:00:00Z"), stale.Latest, "stamped at Friday's close")
	assert.EqualValues(t, retry.MinAttempts, atomic.LoadInt32(hits))

	assert.Equal(t, putsBefore, h.mem.Puts())
	last, _ := h.load(t, candle.OneMinute).Last()
	assert.Equal(t, at(t, "2024-06-28T23:59:00Z"), last.Timestamp)
}

func TestApplyPriorSessionQuoteWhileClosedIsDiscarded(t *testing.T) {
	// Saturday 2024-06-29 12:00 ET.
	srv, _ := quoteServer(t, "55.10", "2024-06-28")
	client, cal := clientAt(t, srv, at(t, "2024-06-29T16:00:00Z"))
	h := newHarnessWith(t, client, cal)
	h.seed(t, candletest.Minutes(at(t, "2024-06-28T23:00:00Z"), 60, 50))
	putsBefore := h.mem.Puts()

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Done, sum.State)
	assert.Equal(t, Discarded, sum.Action)
	assert.Equal(t, putsBefore, h.mem.Puts())
}

func TestApplyCurrentSessionQuoteThroughClient(t *testing.T) {
	// Monday 2024-07-01 10:00:30 ET.
	srv, hits := quoteServer(t, "51.00", "2024-07-01")
	client, cal := clientAt(t, srv, at(t, "2024-07-01T14:00:30Z"))
	h := newHarnessWith(t, client, cal)
	h.seed(t, candletest.Minutes(at(t, "2024-07-01T13:00:00Z"), 60, 50))

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Appended, sum.Action)
	assert.Equal(t, 61, sum.Rows1m)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))

	last, _ := h.load(t, candle.OneMinute).Last()
	assert.Equal(t, candle.Candle{Timestamp: at(t, "2024-07-01T14:00:00Z"), Open: 51, High: 51, Low: 51, Close: 51, Volume: 1200}, last)
}

func TestApplyUnhealthyBootstrapsAndSkips(t *testing.T) {
	h := newHarness(t)
	h.health.set(candle.ThirtyMinute, health.Missing)
	h.rebuild.after = func(interval candle.Interval) { h.health.set(interval, health.Healthy) }

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Skipped, sum.State)
	assert.Equal(t, Bootstrapped, sum.Action)
	assert.Equal(t, []candle.Interval{candle.OneMinute, candle.ThirtyMinute}, h.rebuild.calls)
	assert.Empty(t, sum.Note)
	assert.Zero(t, h.provider.QuoteCalls("AAPL"), "no quote fetched on bootstrap")
}

func TestApplyBootstrapStillDeficientIsReported(t *testing.T) {
	h := newHarness(t)
	h.health.set(candle.OneMinute, health.Deficient)

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, Skipped, sum.State)
	assert.True(t, strings.Contains(sum.Note, "still deficient"), sum.Note)
}

func TestApplyBootstrapFailure(t *testing.T) {
	h := newHarness(t)
	h.health.set(candle.OneMinute, health.Missing)
	h.rebuild.err = fullfetch.ErrNoRows

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.ErrorIs(t, err, fullfetch.ErrNoRows)
	assert.Equal(t, Failed, sum.State)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, HealthGate, ce.State)
}

func TestApplyQuoteFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, candletest.Minutes(at(t, "2024-07-01T13:30:00Z"), 5, 50))
	putsBefore := h.mem.Puts()
	h.provider.FailQuote("AAPL", market.ErrSymbolNotFound)

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, Failed, sum.State)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, FetchQuote, ce.State)
	var pe *retry.ProviderError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, putsBefore, h.mem.Puts())
}

func TestApplyPersistFailureSkips30m(t *testing.T) {
	h := newHarness(t)
	h.seed(t, candletest.Minutes(at(t, "2024-07-01T13:30:00Z"), 5, 50))
	h.provider.SetQuote(market.Quote{Symbol: "AAPL", Price: 51, Timestamp: at(t, "2024-07-01T13:40:00Z")})
	h.mem.FailPut = func(key string) error {
		if strings.Contains(key, "/intraday/") {
			return errors.New("write rejected")
		}
		return nil
	}

	sum, err := h.engine.Apply(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, Failed, sum.State)
	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, Persist1m, ce.State)

	_, err = h.series.Raw(context.Background(), "AAPL", candle.ThirtyMinute)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, h.load(t, candle.OneMinute), 5, "prior blob untouched")
}

func TestApplyCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := h.engine.Apply(ctx, "AAPL")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, sum.State)
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{Done, Failed, Skipped} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{HealthGate, FetchQuote, LoadHistory, Merge, Persist1m, Resample30, Persist30m} {
		assert.False(t, s.Terminal(), s)
	}
}
