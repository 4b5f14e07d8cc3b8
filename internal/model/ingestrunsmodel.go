package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ IngestRunsModel = (*customIngestRunsModel)(nil)

type (
	// IngestRunsModel is an interface to be customized, add more methods here,
	// and implement the added methods in customIngestRunsModel.
	IngestRunsModel interface {
		ingestRunsModel
		Latest(ctx context.Context, kind string) (*IngestRuns, error)
		Recent(ctx context.Context, kind string, limit int) ([]*IngestRuns, error)
		FailedFor(ctx context.Context, symbols []string, limit int) ([]*IngestRuns, error)
	}

	customIngestRunsModel struct {
		*defaultIngestRunsModel
	}
)

// NewIngestRunsModel returns a model for the database table.
func NewIngestRunsModel(conn sqlx.SqlConn, c cache.CacheConf, opts ...cache.Option) IngestRunsModel {
	return &customIngestRunsModel{
		defaultIngestRunsModel: newIngestRunsModel(conn, c, opts...),
	}
}

// Latest returns the most recently finished run. An empty kind matches any kind.
func (m *customIngestRunsModel) Latest(ctx context.Context, kind string) (*IngestRuns, error) {
	rows, err := m.Recent(ctx, kind, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Recent lists runs newest first.
func (m *customIngestRunsModel) Recent(ctx context.Context, kind string, limit int) ([]*IngestRuns, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		args   []any
		clause string
	)
	if k := strings.TrimSpace(kind); k != "" {
		clause = "WHERE kind = $1"
		args = append(args, k)
	}
	args = append(args, limit)
	query := fmt.Sprintf("SELECT %s FROM %s %s ORDER BY finished_at DESC LIMIT $%d",
		ingestRunsRows, m.table, clause, len(args))

	var rows []*IngestRuns
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ingest_runs.Recent query: %w", err)
	}
	return rows, nil
}

// FailedFor lists runs in which any of symbols failed, newest first.
func (m *customIngestRunsModel) FailedFor(ctx context.Context, symbols []string, limit int) ([]*IngestRuns, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE failed_symbols && $1 ORDER BY finished_at DESC LIMIT $2",
		ingestRunsRows, m.table)

	var rows []*IngestRuns
	if err := m.QueryRowsNoCacheCtx(ctx, &rows, query, pq.Array(upper), limit); err != nil {
		return nil, fmt.Errorf("ingest_runs.FailedFor query: %w", err)
	}
	return rows, nil
}
