// Package fixture serves market data from CSV files on disk. It backs local
// runs and demos without a provider API key.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
)

// Provider reads {dir}/{folder}/{SYMBOL}.csv using the same layout as the
// object store, so a store snapshot doubles as a fixture set.
type Provider struct {
	dir string
	now func() time.Time

	mu     sync.RWMutex
	quotes map[string]market.Quote
}

// Option configures the provider.
type Option func(*Provider)

// WithClock overrides the clock used to stamp synthesized quotes.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// New returns a provider rooted at dir.
func New(dir string, opts ...Option) *Provider {
	p := &Provider{dir: dir, now: time.Now, quotes: make(map[string]market.Quote)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func init() {
	market.RegisterProvider("fixture", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		if strings.TrimSpace(cfg.FixtureDir) == "" {
			return nil, fmt.Errorf("fixture provider %s: fixture_dir is required", name)
		}
		return New(cfg.FixtureDir), nil
	})
}

// SetQuote pins the next quotes for symbol.
func (p *Provider) SetQuote(q market.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[strings.ToUpper(q.Symbol)] = q
}

// History implements market.Provider.
func (p *Provider) History(ctx context.Context, symbol string, interval candle.Interval) (market.Bars, error) {
	if err := ctx.Err(); err != nil {
		return market.Bars{}, err
	}
	path := filepath.Join(p.dir, interval.Folder(), strings.ToUpper(symbol)+".csv")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return market.Bars{}, fmt.Errorf("fixture: %s %s: %w", symbol, interval, market.ErrSymbolNotFound)
	}
	if err != nil {
		return market.Bars{}, err
	}
	series, dropped, err := candle.Decode(data)
	if err != nil {
		return market.Bars{}, err
	}
	return market.Bars{Series: series, Dropped: dropped}, nil
}

// LatestQuote returns a pinned quote, or the last 1min close stamped with the
// current minute.
func (p *Provider) LatestQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	p.mu.RLock()
	q, ok := p.quotes[strings.ToUpper(symbol)]
	p.mu.RUnlock()
	if ok {
		return &q, nil
	}
	bars, err := p.History(ctx, symbol, candle.OneMinute)
	if err != nil {
		return nil, err
	}
	last, ok := bars.Series.Last()
	if !ok {
		return nil, fmt.Errorf("fixture: %s: %w", symbol, market.ErrEmptyPayload)
	}
	return &market.Quote{
		Symbol:    strings.ToUpper(symbol),
		Price:     last.Close,
		Timestamp: candle.FloorMinute(p.now()).UTC(),
	}, nil
}
