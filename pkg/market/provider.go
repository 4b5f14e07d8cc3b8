package market

import (
	"context"
	"time"

	"candlekeep/pkg/candle"
)

// Provider exposes historical bars and live quotes for US equities.
type Provider interface {
	// History returns the provider's full window of bars for symbol at
	// interval, timestamps in UTC. Ordering is not guaranteed by every
	// upstream; callers normalize before use.
	History(ctx context.Context, symbol string, interval candle.Interval) (Bars, error)
	// LatestQuote returns the most recent trade price for symbol.
	LatestQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Bars is one History payload. Dropped lists upstream rows that could not be
// decoded into candles at all.
type Bars struct {
	Series  candle.Series
	Dropped candle.RowErrors
}

// Credentialed is implemented by providers that need an API key. Callers use
// it to refuse a run up front instead of failing every symbol.
type Credentialed interface {
	HasCredential() bool
}

// Quote is a single live price observation.
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time // UTC, floored to the minute
	Volume    int64
	// VolumeIncremental marks Volume as the traded amount since the previous
	// quote rather than a cumulative session total.
	VolumeIncremental bool
}

// Tick converts the quote into a merge input.
func (q Quote) Tick() candle.Tick {
	return candle.Tick{
		Timestamp:   candle.FloorMinute(q.Timestamp),
		Price:       q.Price,
		Volume:      q.Volume,
		Incremental: q.VolumeIncremental,
	}
}
