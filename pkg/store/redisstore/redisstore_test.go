package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis/redistest"

	"candlekeep/pkg/store"
)

func TestStoreRoundTrip(t *testing.T) {
	rds := redistest.CreateRedis(t)
	s, err := New(rds, "test")
	require.NoError(t, err)
	fixed := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err = s.Get(ctx, "data/intraday/AAPL.csv")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Put(ctx, "data/intraday/AAPL.csv", []byte("a,b\n1,2\n")))
	got, err := s.Get(ctx, "data/intraday/AAPL.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))

	at, err := s.UpdatedAt(ctx, "data/intraday/AAPL.csv")
	require.NoError(t, err)
	assert.Equal(t, fixed, at)

	raw, err := rds.Get("test:data/intraday/AAPL.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestStoreCorruptEnvelope(t *testing.T) {
	rds := redistest.CreateRedis(t)
	s, err := New(rds, "")
	require.NoError(t, err)
	require.NoError(t, rds.Set("bad", "\xc1"))

	_, err = s.Get(context.Background(), "bad")
	var se *store.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "redis", se.Backend)
}
