// Package markettest provides a scripted market.Provider for tests.
package markettest

import (
	"context"
	"strings"
	"sync"

	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
)

// Fake serves canned history and quotes. Errors take precedence over data.
type Fake struct {
	mu         sync.Mutex
	history    map[string]market.Bars
	historyErr map[string]error
	quotes     map[string]market.Quote
	quoteErr   map[string]error
	calls      map[string]int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		history:    make(map[string]market.Bars),
		historyErr: make(map[string]error),
		quotes:     make(map[string]market.Quote),
		quoteErr:   make(map[string]error),
		calls:      make(map[string]int),
	}
}

func key(symbol string, interval candle.Interval) string {
	return strings.ToUpper(symbol) + "/" + interval.String()
}

// SetHistory scripts History for (symbol, interval).
func (f *Fake) SetHistory(symbol string, interval candle.Interval, s candle.Series) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[key(symbol, interval)] = market.Bars{Series: s.Clone()}
	return f
}

// SetBars scripts History with rows the provider could not decode.
func (f *Fake) SetBars(symbol string, interval candle.Interval, b market.Bars) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[key(symbol, interval)] = market.Bars{Series: b.Series.Clone(), Dropped: append(candle.RowErrors(nil), b.Dropped...)}
	return f
}

// FailHistory makes History return err for (symbol, interval).
func (f *Fake) FailHistory(symbol string, interval candle.Interval, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyErr[key(symbol, interval)] = err
	return f
}

// SetQuote scripts LatestQuote for q.Symbol.
func (f *Fake) SetQuote(q market.Quote) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[strings.ToUpper(q.Symbol)] = q
	return f
}

// FailQuote makes LatestQuote return err for symbol.
func (f *Fake) FailQuote(symbol string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteErr[strings.ToUpper(symbol)] = err
	return f
}

// HistoryCalls counts History calls for (symbol, interval).
func (f *Fake) HistoryCalls(symbol string, interval candle.Interval) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key(symbol, interval)]
}

// QuoteCalls counts LatestQuote calls for symbol.
func (f *Fake) QuoteCalls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls["quote/"+strings.ToUpper(symbol)]
}

// History implements market.Provider.
func (f *Fake) History(ctx context.Context, symbol string, interval candle.Interval) (market.Bars, error) {
	if err := ctx.Err(); err != nil {
		return market.Bars{}, err
	}
	k := key(symbol, interval)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[k]++
	if err, ok := f.historyErr[k]; ok {
		return market.Bars{}, err
	}
	b, ok := f.history[k]
	if !ok {
		return market.Bars{}, market.ErrSymbolNotFound
	}
	return market.Bars{Series: b.Series.Clone(), Dropped: b.Dropped}, nil
}

// LatestQuote implements market.Provider.
func (f *Fake) LatestQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := strings.ToUpper(symbol)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["quote/"+sym]++
	if err, ok := f.quoteErr[sym]; ok {
		return nil, err
	}
	q, ok := f.quotes[sym]
	if !ok {
		return nil, market.ErrSymbolNotFound
	}
	return &q, nil
}
