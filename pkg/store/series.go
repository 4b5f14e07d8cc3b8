package store

import (
	"context"
	"time"

	"candlekeep/pkg/candle"
)

// SeriesStore layers CSV encoding and key naming over an ObjectStore.
type SeriesStore struct {
	objects ObjectStore
	keys    Keyer
}

// NewSeriesStore wraps objects with the {prefix}/{folder}/{SYMBOL}.csv scheme.
func NewSeriesStore(objects ObjectStore, prefix string) *SeriesStore {
	return &SeriesStore{objects: objects, keys: Keyer{Prefix: prefix}}
}

// Key exposes the object key for a series.
func (s *SeriesStore) Key(symbol string, interval candle.Interval) string {
	return s.keys.Key(symbol, interval)
}

// Raw returns the stored bytes.
func (s *SeriesStore) Raw(ctx context.Context, symbol string, interval candle.Interval) ([]byte, error) {
	return s.objects.Get(ctx, s.Key(symbol, interval))
}

// Load decodes the stored series. Rows that fail validation are dropped and
// returned alongside the canonical series.
func (s *SeriesStore) Load(ctx context.Context, symbol string, interval candle.Interval) (candle.Series, candle.RowErrors, error) {
	data, err := s.Raw(ctx, symbol, interval)
	if err != nil {
		return nil, nil, err
	}
	return candle.Decode(data)
}

// UpdatedAt reports when the series blob was last written. ok is false when
// the backend does not track write times or the lookup fails.
func (s *SeriesStore) UpdatedAt(ctx context.Context, symbol string, interval candle.Interval) (at time.Time, ok bool) {
	stamped, isStamped := s.objects.(Stamped)
	if !isStamped {
		return time.Time{}, false
	}
	at, err := stamped.UpdatedAt(ctx, s.Key(symbol, interval))
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// Save encodes and overwrites the series blob.
func (s *SeriesStore) Save(ctx context.Context, symbol string, interval candle.Interval, series candle.Series) error {
	return s.objects.Put(ctx, s.Key(symbol, interval), candle.Encode(series))
}
