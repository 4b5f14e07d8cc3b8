package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"

	"candlekeep/internal/batch"
	cachekeys "candlekeep/internal/cache"
	"candlekeep/internal/model"
)

// Service records summaries in Postgres and keeps the latest one per kind in
// the Redis cache. Either side may be absent.
type Service struct {
	runsModel model.IngestRunsModel
	cache     gocache.Cache
	ttl       cachekeys.TTLSet
}

// Config enumerates dependencies required to persist run summaries.
type Config struct {
	RunsModel model.IngestRunsModel
	Cache     gocache.Cache
	TTL       cachekeys.TTLSet
}

// NewService wires a run persistence service. Returns nil when dependencies missing.
func NewService(cfg Config) *Service {
	if cfg.RunsModel == nil && cfg.Cache == nil {
		return nil
	}
	return &Service{
		runsModel: cfg.RunsModel,
		cache:     cfg.Cache,
		ttl:       cfg.TTL,
	}
}

// Record inserts the summary row and refreshes the cached latest summary.
// Cache failures are logged, not returned.
func (s *Service) Record(ctx context.Context, summary batch.RunSummary) error {
	if s == nil {
		return nil
	}
	if s.runsModel != nil {
		row, err := toRow(summary)
		if err != nil {
			return err
		}
		if _, err := s.runsModel.Insert(ctx, row); err != nil {
			if isUniqueViolation(err) {
				logx.WithContext(ctx).Infof("runs: duplicate run=%s ignored", summary.RunID)
			} else {
				return fmt.Errorf("runs: insert run=%s: %w", summary.RunID, err)
			}
		}
	}
	s.cacheSummary(ctx, summary)
	return nil
}

// Latest serves from the cache and falls back to Postgres.
func (s *Service) Latest(ctx context.Context, kind string) (*batch.RunSummary, error) {
	if s == nil {
		return nil, ErrNoRuns
	}
	key := latestKey(kind)
	if s.cache != nil {
		var cached batch.RunSummary
		err := s.cache.GetCtx(ctx, key, &cached)
		switch {
		case err == nil:
			return &cached, nil
		case !errors.Is(err, model.ErrNotFound):
			logx.WithContext(ctx).Errorf("runs: cache get key=%s err=%v", key, err)
		}
	}
	if s.runsModel == nil {
		return nil, ErrNoRuns
	}
	row, err := s.runsModel.Latest(ctx, strings.TrimSpace(kind))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("runs: latest kind=%s: %w", kind, err)
	}
	summary, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	s.setCache(ctx, key, summary, cachekeys.RunLatestTTL(s.ttl))
	return summary, nil
}

// Failures lists Postgres runs in which symbol failed. Without a model it
// returns ErrNoRuns so other readers are asked.
func (s *Service) Failures(ctx context.Context, symbol string, limit int) ([]batch.RunSummary, error) {
	if s == nil || s.runsModel == nil {
		return nil, ErrNoRuns
	}
	rows, err := s.runsModel.FailedFor(ctx, []string{symbol}, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: failures symbol=%s: %w", symbol, err)
	}
	out := make([]batch.RunSummary, 0, len(rows))
	for _, row := range rows {
		summary, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

func (s *Service) cacheSummary(ctx context.Context, summary batch.RunSummary) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.RunLatestTTL(s.ttl)
	s.setCache(ctx, cachekeys.RunLatestKey(string(summary.Kind)), &summary, ttl)
	s.setCache(ctx, cachekeys.RunLatestAnyKey(), &summary, ttl)
	s.setCache(ctx, cachekeys.RunKey(summary.RunID), &summary, cachekeys.RunTTL(s.ttl))
}

func (s *Service) setCache(ctx context.Context, key string, summary *batch.RunSummary, ttl time.Duration) {
	if s.cache == nil || ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, summary, ttl); err != nil {
		logx.WithContext(ctx).Errorf("runs: cache set key=%s err=%v", key, err)
	}
}

func latestKey(kind string) string {
	if k := strings.TrimSpace(kind); k != "" {
		return cachekeys.RunLatestKey(k)
	}
	return cachekeys.RunLatestAnyKey()
}

func toRow(summary batch.RunSummary) (*model.IngestRuns, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("runs: marshal run=%s: %w", summary.RunID, err)
	}
	failed := summary.FailedSymbols()
	if failed == nil {
		failed = []string{}
	}
	return &model.IngestRuns{
		RunId:         summary.RunID,
		Kind:          string(summary.Kind),
		StartedAt:     summary.StartedAt.UTC(),
		FinishedAt:    summary.FinishedAt.UTC(),
		Gated:         summary.Gated,
		Healthy:       int64(summary.Counts.Healthy),
		Bootstrapped:  int64(summary.Counts.Bootstrapped),
		Updated:       int64(summary.Counts.Updated),
		Skipped:       int64(summary.Counts.Skipped),
		Failed:        int64(summary.Counts.Failed),
		DroppedRows:   int64(summary.DroppedRows),
		FailedSymbols: pq.StringArray(failed),
		Error:         sql.NullString{String: summary.Error, Valid: summary.Error != ""},
		Summary:       string(raw),
	}, nil
}

func fromRow(row *model.IngestRuns) (*batch.RunSummary, error) {
	var summary batch.RunSummary
	if err := json.Unmarshal([]byte(row.Summary), &summary); err != nil {
		return nil, fmt.Errorf("runs: decode run=%s: %w", row.RunId, err)
	}
	return &summary, nil
}

// isUniqueViolation covers both the pgx and lib/pq drivers.
func isUniqueViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == "23505"
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
