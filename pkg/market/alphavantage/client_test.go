package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
)

const intradayBody = `{
  "Meta Data": {"2. Symbol": "IBM", "6. Time Zone": "US/Eastern"},
  "Time Series (1min)": {
    "2024-07-01 09:31:00": {"1. open": "10.10", "2. high": "10.30", "3. low": "10.00", "4. close": "10.20", "5. volume": "1500"},
    "2024-07-01 09:30:00": {"1. open": "10.00", "2. high": "10.20", "3. low": "9.90", "4. close": "10.10", "5. volume": "1000"},
    "garbage": {"1. open": "x"}
  }
}`

const dailyBody = `{
  "Time Series (Daily)": {
    "2024-07-01": {"1. open": "100", "2. high": "110", "3. low": "95", "4. close": "105", "5. volume": "123456"}
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{
		WithBaseURL(server.URL),
		WithCallsPerMinute(0),
		WithMaxRetries(0),
	}, opts...)
	client, err := NewClient("demo", opts...)
	require.NoError(t, err)
	return client
}

func TestHistoryIntraday(t *testing.T) {
	var query atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		_, _ = w.Write([]byte(intradayBody))
	})

	bars, err := client.History(context.Background(), "ibm", candle.OneMinute)
	require.NoError(t, err)
	series := bars.Series
	require.Len(t, series, 2)
	assert.True(t, candle.IsCanonical(series), "bars come back ascending")
	require.Len(t, bars.Dropped, 1, "garbage bar is reported")
	assert.Contains(t, bars.Dropped[0].Reason, "garbage")

	// 09:30 EDT == 13:30 UTC
	assert.Equal(t, time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC), series[0].Timestamp)
	assert.Equal(t, int64(1000), series[0].Volume)
	assert.InDelta(t, 10.2, series[1].Close, 1e-9)

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"TIME_SERIES_INTRADAY"}, q["function"])
	assert.Equal(t, []string{"IBM"}, q["symbol"])
	assert.Equal(t, []string{"1min"}, q["interval"])
	assert.Equal(t, []string{"full"}, q["outputsize"])
	assert.Equal(t, []string{"demo"}, q["apikey"])
}

func TestHistoryDailyStampedAtClose(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		_, _ = w.Write([]byte(dailyBody))
	})

	bars, err := client.History(context.Background(), "IBM", candle.Daily)
	require.NoError(t, err)
	require.Len(t, bars.Series, 1)
	assert.Equal(t, time.Date(2024, 7, 1, 20, 0, 0, 0, time.UTC), bars.Series[0].Timestamp)
}

func TestPayloadErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		sentinel  error
		retryable bool
	}{
		{"invalid symbol", `{"Error Message": "Invalid API call."}`, market.ErrSymbolNotFound, false},
		{"rate limit note", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`, market.ErrRateLimited, true},
		{"daily quota", `{"Information": "We have detected your API key as demo and our standard API rate limit is 25 requests per day."}`, market.ErrRateLimited, true},
		{"missing series", `{"Meta Data": {}}`, market.ErrEmptyPayload, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.History(context.Background(), "IBM", candle.OneMinute)
			require.ErrorIs(t, err, tt.sentinel)
			var pe *market.PayloadError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.retryable, pe.Retryable())
		})
	}
}

func TestLatestQuote(t *testing.T) {
	now := time.Date(2024, 7, 1, 14, 7, 42, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		_, _ = w.Write([]byte(`{"Global Quote": {"01. symbol": "IBM", "05. price": "176.5200", "06. volume": "N/A"}}`))
	}, WithClock(func() time.Time { return now }))

	q, err := client.LatestQuote(context.Background(), "ibm")
	require.NoError(t, err)
	assert.Equal(t, "IBM", q.Symbol)
	assert.InDelta(t, 176.52, q.Price, 1e-9)
	assert.Equal(t, time.Date(2024, 7, 1, 14, 7, 0, 0, time.UTC), q.Timestamp)
	assert.Zero(t, q.Volume)
	assert.False(t, q.VolumeIncremental)
}

func TestLatestQuoteStampedByTradingDay(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		latestDay string
		wantStamp time.Time
	}{
		{
			name:      "today uses the current minute",
			now:       time.Date(2024, 7, 1, 14, 7, 42, 0, time.UTC),
			latestDay: "2024-07-01",
			wantStamp: time.Date(2024, 7, 1, 14, 7, 0, 0, time.UTC),
		},
		{
			name:      "pre-market monday reports friday",
			now:       time.Date(2024, 7, 1, 8, 5, 0, 0, time.UTC),
			latestDay: "2024-06-28",
			wantStamp: time.Date(2024, 6, 28, 20, 0, 0, 0, time.UTC),
		},
		{
			name:      "after midnight UTC is still the same ET day",
			now:       time.Date(2024, 7, 2, 1, 30, 0, 0, time.UTC),
			latestDay: "2024-07-01",
			wantStamp: time.Date(2024, 7, 2, 1, 30, 0, 0, time.UTC),
		},
		{
			name:      "winter close is 21:00 UTC",
			now:       time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
			latestDay: "2024-01-05",
			wantStamp: time.Date(2024, 1, 5, 21, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"Global Quote": {"01. symbol": "IBM", "05. price": "176.52", "06. volume": "100", "07. latest trading day": "` + tt.latestDay + `"}}`))
			}, WithClock(func() time.Time { return now }))

			q, err := client.LatestQuote(context.Background(), "IBM")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStamp, q.Timestamp)
		})
	}
}

func TestLatestQuoteBadTradingDay(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Global Quote": {"01. symbol": "IBM", "05. price": "176.52", "07. latest trading day": "yesterday"}}`))
	})
	_, err := client.LatestQuote(context.Background(), "IBM")
	require.ErrorContains(t, err, "latest trading day")
}

func TestLatestQuoteUnknownSymbol(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Global Quote": {}}`))
	})
	_, err := client.LatestQuote(context.Background(), "NOPE")
	require.ErrorIs(t, err, market.ErrSymbolNotFound)
}

func TestMissingCredential(t *testing.T) {
	client, err := NewClient("")
	require.NoError(t, err)
	assert.False(t, client.HasCredential())
	_, err = client.History(context.Background(), "IBM", candle.Daily)
	require.ErrorIs(t, err, market.ErrMissingCredential)
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(dailyBody))
	}, WithMaxRetries(1))

	bars, err := client.History(context.Background(), "IBM", candle.Daily)
	require.NoError(t, err)
	assert.Len(t, bars.Series, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDoRequestClientErrorIsPermanent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, WithMaxRetries(3))

	_, err := client.History(context.Background(), "IBM", candle.Daily)
	var se *market.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.False(t, se.Retryable())
}

func TestRegisteredProvider(t *testing.T) {
	cfg := &market.Config{
		Default: "av",
		Providers: map[string]*market.ProviderConfig{
			"av": {Type: "alphavantage", APIKey: "k", CallsPerMinute: 75},
		},
	}
	require.NoError(t, cfg.Validate())
	p, err := cfg.BuildDefault()
	require.NoError(t, err)
	cred, ok := p.(market.Credentialed)
	require.True(t, ok)
	assert.True(t, cred.HasCredential())
}
