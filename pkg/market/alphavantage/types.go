package alphavantage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"candlekeep/pkg/calendar"
	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
)

const (
	fnIntraday = "TIME_SERIES_INTRADAY"
	fnDaily    = "TIME_SERIES_DAILY"
	fnQuote    = "GLOBAL_QUOTE"

	intradayLayout = "2006-01-02 15:04:05"
	dailyLayout    = "2006-01-02"
)

// bar is one entry of a "Time Series (...)" object.
type bar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// globalQuote is the "Global Quote" object.
type globalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
}

// envelope captures every top-level key we care about. Time series keys vary
// by interval so they stay raw.
type envelope map[string]json.RawMessage

func seriesKey(interval candle.Interval) string {
	switch interval {
	case candle.Daily:
		return "Time Series (Daily)"
	default:
		return fmt.Sprintf("Time Series (%s)", interval)
	}
}

// payloadError maps the provider's in-band error keys to typed errors.
func payloadError(env envelope, symbol string) error {
	if msg, ok := stringField(env, "Error Message"); ok {
		return &market.PayloadError{Provider: providerName, Symbol: symbol, Message: msg, Err: market.ErrSymbolNotFound}
	}
	for _, key := range []string{"Note", "Information"} {
		msg, ok := stringField(env, key)
		if !ok {
			continue
		}
		lower := strings.ToLower(msg)
		switch {
		case strings.Contains(lower, "call frequency"),
			strings.Contains(lower, "rate limit"),
			strings.Contains(lower, "requests per"):
			return &market.PayloadError{Provider: providerName, Symbol: symbol, Message: msg, Err: market.ErrRateLimited}
		case strings.Contains(lower, "apikey") || strings.Contains(lower, "api key"):
			return &market.PayloadError{Provider: providerName, Symbol: symbol, Message: msg, Err: market.ErrMissingCredential}
		default:
			return &market.PayloadError{Provider: providerName, Symbol: symbol, Message: msg}
		}
	}
	return nil
}

func stringField(env envelope, key string) (string, bool) {
	raw, ok := env[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

// parseSeries converts a time series object into ascending candles. Bars
// whose timestamp or numbers cannot be read are returned as row errors;
// Normalize downstream reports invalid OHLC.
func parseSeries(raw json.RawMessage, interval candle.Interval, cal *calendar.Calendar) (candle.Series, candle.RowErrors, error) {
	var bars map[string]bar
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, nil, fmt.Errorf("%s: decode time series: %w", providerName, err)
	}
	stamps := make([]string, 0, len(bars))
	for stamp := range bars {
		stamps = append(stamps, stamp)
	}
	sort.Strings(stamps)

	var dropped candle.RowErrors
	out := make(candle.Series, 0, len(bars))
	for i, stamp := range stamps {
		ts, err := parseStamp(stamp, interval, cal)
		if err != nil {
			dropped = append(dropped, candle.RowError{Row: i + 1, Reason: fmt.Sprintf("bad timestamp %q", stamp)})
			continue
		}
		c, err := bars[stamp].candle(ts)
		if err != nil {
			dropped = append(dropped, candle.RowError{Row: i + 1, Timestamp: ts, Reason: err.Error()})
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, dropped, nil
}

// parseStamp reads exchange-local timestamps. Daily bars are stamped at the
// 16:00 close.
func parseStamp(stamp string, interval candle.Interval, cal *calendar.Calendar) (time.Time, error) {
	layout := intradayLayout
	if interval == candle.Daily {
		layout = dailyLayout
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(stamp), cal.Location())
	if err != nil {
		return time.Time{}, err
	}
	if interval == candle.Daily {
		return cal.DailyClose(t), nil
	}
	return t.UTC(), nil
}

func (b bar) candle(ts time.Time) (candle.Candle, error) {
	var (
		c   = candle.Candle{Timestamp: ts}
		err error
	)
	if c.Open, err = parseFloat(b.Open); err != nil {
		return c, err
	}
	if c.High, err = parseFloat(b.High); err != nil {
		return c, err
	}
	if c.Low, err = parseFloat(b.Low); err != nil {
		return c, err
	}
	if c.Close, err = parseFloat(b.Close); err != nil {
		return c, err
	}
	c.Volume, err = candle.ParseVolume(b.Volume)
	return c, err
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
