package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/time/rate"

	"candlekeep/pkg/calendar"
	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
)

const (
	providerName            = "alphavantage"
	defaultBaseURL          = "https://www.alphavantage.co/query"
	defaultHTTPTimeout      = 30 * time.Second
	defaultMaxRetries       = 2
	defaultRetryBackoffBase = 500 * time.Millisecond
	// Free-tier quota.
	defaultCallsPerMinute = 5
)

// Client talks to the Alpha Vantage query endpoint.
type Client struct {
	baseURL       string
	apiKey        string
	entitlement   string
	extendedHours bool
	outputSize    string
	httpClient    *http.Client
	maxRetries    int
	limiter       *rate.Limiter
	cal           *calendar.Calendar
	now           func() time.Time
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the query endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithMaxRetries adjusts the transport-level retry budget.
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max >= 0 {
			c.maxRetries = max
		}
	}
}

// WithCallsPerMinute throttles outbound calls. n <= 0 disables throttling.
func WithCallsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithEntitlement sets the entitlement query parameter ("realtime", "delayed").
func WithEntitlement(e string) Option {
	return func(c *Client) { c.entitlement = strings.TrimSpace(e) }
}

// WithExtendedHours toggles pre and post market intraday bars.
func WithExtendedHours(on bool) Option {
	return func(c *Client) { c.extendedHours = on }
}

// WithCompactOutput requests only the latest 100 bars.
func WithCompactOutput() Option {
	return func(c *Client) { c.outputSize = "compact" }
}

// WithClock overrides the wall clock used to stamp quotes.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a client. An empty apiKey is accepted so that the
// process can start; calls then fail with market.ErrMissingCredential.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:       defaultBaseURL,
		apiKey:        strings.TrimSpace(apiKey),
		extendedHours: true,
		outputSize:    "full",
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries:    defaultMaxRetries,
		now:           time.Now,
	}
	WithCallsPerMinute(defaultCallsPerMinute)(client)
	for _, opt := range opts {
		opt(client)
	}
	cal, err := calendar.New(calendar.WithClock(client.now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}
	client.cal = cal
	return client, nil
}

// HasCredential implements market.Credentialed.
func (c *Client) HasCredential() bool { return c.apiKey != "" }

// History implements market.Provider.
func (c *Client) History(ctx context.Context, symbol string, interval candle.Interval) (market.Bars, error) {
	params := url.Values{}
	switch interval {
	case candle.OneMinute, candle.ThirtyMinute:
		params.Set("function", fnIntraday)
		params.Set("interval", interval.String())
		params.Set("extended_hours", fmt.Sprintf("%t", c.extendedHours))
	case candle.Daily:
		params.Set("function", fnDaily)
	default:
		return market.Bars{}, fmt.Errorf("%s: unsupported interval %q", providerName, interval)
	}
	params.Set("outputsize", c.outputSize)

	env, err := c.query(ctx, symbol, params)
	if err != nil {
		return market.Bars{}, err
	}
	raw, ok := env[seriesKey(interval)]
	if !ok {
		return market.Bars{}, &market.PayloadError{Provider: providerName, Symbol: symbol, Message: "missing " + seriesKey(interval), Err: market.ErrEmptyPayload}
	}
	series, dropped, err := parseSeries(raw, interval, c.cal)
	if err != nil {
		return market.Bars{}, err
	}
	logger := logx.WithContext(ctx)
	if len(dropped) > 0 {
		logger.Infof("%s: history symbol=%s interval=%s undecodable bars: %v", providerName, symbol, interval, dropped)
	}
	logger.Debugf("%s: history symbol=%s interval=%s rows=%d", providerName, symbol, interval, len(series))
	return market.Bars{Series: series, Dropped: dropped}, nil
}

// LatestQuote implements market.Provider. GLOBAL_QUOTE carries only the
// latest trading day: a quote for today is stamped with the current minute,
// one from an earlier day with that day's close.
func (c *Client) LatestQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	params := url.Values{}
	params.Set("function", fnQuote)
	env, err := c.query(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	raw, ok := env["Global Quote"]
	if !ok {
		return nil, &market.PayloadError{Provider: providerName, Symbol: symbol, Message: "missing Global Quote", Err: market.ErrEmptyPayload}
	}
	var q globalQuote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("%s: decode quote: %w", providerName, err)
	}
	if strings.TrimSpace(q.Price) == "" {
		// An unknown ticker yields an empty object.
		return nil, &market.PayloadError{Provider: providerName, Symbol: symbol, Message: "empty Global Quote", Err: market.ErrSymbolNotFound}
	}
	price, err := parseFloat(q.Price)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid price %q: %w", providerName, q.Price, err)
	}
	volume, err := candle.ParseVolume(q.Volume)
	if err != nil {
		volume = 0
	}
	ts, err := c.quoteStamp(q.LatestTradingDay)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid latest trading day %q: %w", providerName, q.LatestTradingDay, err)
	}
	return &market.Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		Timestamp: ts,
		Volume:    volume,
	}, nil
}

func (c *Client) quoteStamp(latestDay string) (time.Time, error) {
	now := candle.FloorMinute(c.now()).UTC()
	latestDay = strings.TrimSpace(latestDay)
	if latestDay == "" {
		return now, nil
	}
	day, err := time.ParseInLocation(dailyLayout, latestDay, c.cal.Location())
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := now.In(c.cal.Location()).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, c.cal.Location())
	if day.Before(today) {
		return c.cal.DailyClose(day), nil
	}
	return now, nil
}

func (c *Client) query(ctx context.Context, symbol string, params url.Values) (envelope, error) {
	if c.apiKey == "" {
		return nil, market.ErrMissingCredential
	}
	params.Set("symbol", strings.ToUpper(strings.TrimSpace(symbol)))
	params.Set("apikey", c.apiKey)
	if c.entitlement != "" {
		params.Set("entitlement", c.entitlement)
	}
	var env envelope
	if err := c.doRequest(ctx, params, &env); err != nil {
		return nil, err
	}
	if err := payloadError(env, symbol); err != nil {
		return nil, err
	}
	return env, nil
}

// doRequest issues a GET and decodes the JSON body into result. Transport
// failures and 5xx responses are retried with exponential backoff.
func (c *Client) doRequest(ctx context.Context, params url.Values, result interface{}) error {
	endpoint := c.baseURL + "?" + params.Encode()
	var lastErr error
	backoff := defaultRetryBackoffBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", providerName, err)
		}
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%s: read response: %w", providerName, readErr)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				statusErr := &market.StatusError{Provider: providerName, Code: resp.StatusCode, Body: string(body)}
				if !statusErr.Retryable() {
					return statusErr
				}
				lastErr = statusErr
			default:
				if err := json.Unmarshal(body, result); err != nil {
					return fmt.Errorf("%s: decode response: %w", providerName, err)
				}
				return nil
			}
		}

		if attempt < c.maxRetries {
			logx.WithContext(ctx).Infof("%s: retrying request attempt=%d err=%v", providerName, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("%s: request failed without error detail", providerName)
}
