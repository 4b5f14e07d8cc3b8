package runs

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis/redistest"
	"github.com/zeromicro/go-zero/core/syncx"

	"candlekeep/internal/batch"
	cachekeys "candlekeep/internal/cache"
	"candlekeep/internal/model"
)

func sampleSummary(id string, kind batch.Kind, finished time.Time) batch.RunSummary {
	return batch.RunSummary{
		RunID:      id,
		Kind:       kind,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Counts:     batch.Counts{Updated: 1, Failed: 1},
		Outcomes: []batch.SymbolOutcome{
			{Symbol: "AAPL", Outcome: batch.OutcomeUpdated, DurationMs: 12},
			{Symbol: "MSFT", Outcome: batch.OutcomeFailed, Error: "provider exhausted", DurationMs: 40},
		},
		DroppedRows: 3,
	}
}

func TestSQLiteRecorderLatestByKind(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer rec.Close()
	ctx := context.Background()

	_, err = rec.Latest(ctx, "")
	require.ErrorIs(t, err, ErrNoRuns)

	base := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Record(ctx, sampleSummary("r1", batch.KindUpdate, base)))
	require.NoError(t, rec.Record(ctx, sampleSummary("r2", batch.KindRebuild, base.Add(time.Hour))))
	require.NoError(t, rec.Record(ctx, sampleSummary("r3", batch.KindUpdate, base.Add(2*time.Minute))))

	latest, err := rec.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.RunID)

	upd, err := rec.Latest(ctx, "update")
	require.NoError(t, err)
	assert.Equal(t, "r3", upd.RunID)
	assert.Equal(t, sampleSummary("r3", batch.KindUpdate, base.Add(2*time.Minute)), *upd)

	failed, err := rec.Failures(ctx, "msft", 2)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "r2", failed[0].RunID)
	assert.Equal(t, "r3", failed[1].RunID)

	failed, err = rec.Failures(ctx, "MS", 0)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestSQLiteRecorderReplacesRunID(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer rec.Close()
	ctx := context.Background()

	s := sampleSummary("r1", batch.KindHealth, time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, rec.Record(ctx, s))
	s.DroppedRows = 9
	require.NoError(t, rec.Record(ctx, s))

	got, err := rec.Latest(ctx, "health")
	require.NoError(t, err)
	assert.Equal(t, 9, got.DroppedRows)
}

func TestJournalRecorderWritesFile(t *testing.T) {
	dir := t.TempDir()
	rec := NewJournalRecorder(dir)
	require.NoError(t, rec.Record(context.Background(), sampleSummary("r1", batch.KindUpdate, time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run_update_20240701_140000_00001.json", entries[0].Name())
}

type failingRecorder struct{ err error }

func (f failingRecorder) Record(context.Context, batch.RunSummary) error { return f.err }

func TestMultiRecordsEverywhereAndReadsFirstHit(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer rec.Close()

	boom := errors.New("boom")
	m := NewMulti(nil, failingRecorder{boom}, NewJournalRecorder(t.TempDir()), rec)
	assert.Equal(t, 3, m.Len())

	s := sampleSummary("r1", batch.KindUpdate, time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC))
	err = m.Record(context.Background(), s)
	require.ErrorIs(t, err, boom)

	got, err := m.Latest(context.Background(), "update")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)

	_, err = NewMulti().Latest(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRuns)
}

type fakeRunsModel struct {
	mu   sync.Mutex
	rows []*model.IngestRuns
	err  error
}

func (f *fakeRunsModel) Insert(_ context.Context, data *model.IngestRuns) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.rows = append(f.rows, data)
	return nil, nil
}

func (f *fakeRunsModel) FindOne(context.Context, int64) (*model.IngestRuns, error) {
	return nil, model.ErrNotFound
}

func (f *fakeRunsModel) FindOneByRunId(_ context.Context, runID string) (*model.IngestRuns, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.RunId == runID {
			return r, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeRunsModel) Update(context.Context, *model.IngestRuns) error { return nil }

func (f *fakeRunsModel) Delete(context.Context, int64) error { return nil }

func (f *fakeRunsModel) Latest(ctx context.Context, kind string) (*model.IngestRuns, error) {
	rows, _ := f.Recent(ctx, kind, 1)
	if len(rows) == 0 {
		return nil, model.ErrNotFound
	}
	return rows[0], nil
}

func (f *fakeRunsModel) Recent(_ context.Context, kind string, limit int) ([]*model.IngestRuns, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.IngestRuns
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if kind == "" || f.rows[i].Kind == kind {
			out = append(out, f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeRunsModel) FailedFor(_ context.Context, symbols []string, limit int) ([]*model.IngestRuns, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.IngestRuns
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		for _, failed := range f.rows[i].FailedSymbols {
			if failed == symbols[0] {
				out = append(out, f.rows[i])
				break
			}
		}
	}
	return out, nil
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	rds := redistest.CreateRedis(t)
	return cache.NewNode(rds, syncx.NewSingleFlight(), cache.NewStat("runs-test"), model.ErrNotFound)
}

func TestServiceRecordsRowAndCachesLatest(t *testing.T) {
	runsModel := &fakeRunsModel{}
	c := newTestCache(t)
	svc := NewService(Config{RunsModel: runsModel, Cache: c, TTL: cachekeys.TTLSet{Short: time.Second, Medium: time.Minute, Long: time.Hour}})
	ctx := context.Background()

	s := sampleSummary("r1", batch.KindUpdate, time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, svc.Record(ctx, s))

	require.Len(t, runsModel.rows, 1)
	row := runsModel.rows[0]
	assert.Equal(t, "update", row.Kind)
	assert.Equal(t, []string{"MSFT"}, []string(row.FailedSymbols))
	assert.Equal(t, int64(3), row.DroppedRows)
	assert.False(t, row.Error.Valid)

	var cached batch.RunSummary
	require.NoError(t, c.GetCtx(ctx, cachekeys.RunLatestKey("update"), &cached))
	assert.Equal(t, "r1", cached.RunID)

	got, err := svc.Latest(ctx, "update")
	require.NoError(t, err)
	assert.Equal(t, s, *got)
}

func TestServiceLatestFallsBackToPostgres(t *testing.T) {
	runsModel := &fakeRunsModel{}
	s := sampleSummary("r9", batch.KindRebuild, time.Date(2024, 7, 1, 5, 30, 0, 0, time.UTC))
	row, err := toRow(s)
	require.NoError(t, err)
	runsModel.rows = append(runsModel.rows, row)

	c := newTestCache(t)
	svc := NewService(Config{RunsModel: runsModel, Cache: c, TTL: cachekeys.TTLSet{Long: time.Hour}})
	got, err := svc.Latest(context.Background(), "rebuild")
	require.NoError(t, err)
	assert.Equal(t, "r9", got.RunID)

	var cached batch.RunSummary
	assert.NoError(t, c.GetCtx(context.Background(), cachekeys.RunLatestKey("rebuild"), &cached), "backfilled into cache")

	_, err = svc.Latest(context.Background(), "health")
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestServiceInsertError(t *testing.T) {
	svc := NewService(Config{RunsModel: &fakeRunsModel{err: errors.New("conn refused")}})
	err := svc.Record(context.Background(), sampleSummary("r1", batch.KindUpdate, time.Now()))
	assert.ErrorContains(t, err, "conn refused")
	assert.Nil(t, NewService(Config{}))
}

func TestFailuresPreferPostgresThenSQLite(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)

	sqlite, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer sqlite.Close()
	require.NoError(t, sqlite.Record(ctx, sampleSummary("local", batch.KindUpdate, base)))

	// No model: the service defers to SQLite.
	m := NewMulti(NewService(Config{Cache: newTestCache(t)}), sqlite)
	got, err := m.Failures(ctx, "MSFT", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "local", got[0].RunID)

	runsModel := &fakeRunsModel{}
	svc := NewService(Config{RunsModel: runsModel})
	require.NoError(t, svc.Record(ctx, sampleSummary("pg", batch.KindRebuild, base)))
	m = NewMulti(svc, sqlite)
	got, err = m.Failures(ctx, "MSFT", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pg", got[0].RunID)

	got, err = NewMulti(NewJournalRecorder(t.TempDir())).Failures(ctx, "MSFT", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
