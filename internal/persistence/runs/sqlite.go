package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"
	_ "modernc.org/sqlite"

	"candlekeep/internal/batch"
)

// SQLiteRecorder keeps run summaries in a local SQLite file.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("runs: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("runs: set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("runs: migrate: %w", err)
	}
	logx.Infof("runs: sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL UNIQUE,
			kind           TEXT NOT NULL,
			started_at     INTEGER NOT NULL,
			finished_at    INTEGER NOT NULL,
			gated          INTEGER NOT NULL DEFAULT 0,
			healthy        INTEGER NOT NULL DEFAULT 0,
			bootstrapped   INTEGER NOT NULL DEFAULT 0,
			updated        INTEGER NOT NULL DEFAULT 0,
			skipped        INTEGER NOT NULL DEFAULT 0,
			failed         INTEGER NOT NULL DEFAULT 0,
			dropped_rows   INTEGER NOT NULL DEFAULT 0,
			failed_symbols TEXT,
			error          TEXT,
			summary        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_runs_kind_finished ON ingest_runs(kind, finished_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record implements batch.Recorder. Re-recording a run ID replaces the row.
func (r *SQLiteRecorder) Record(ctx context.Context, summary batch.RunSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("runs: marshal run=%s: %w", summary.RunID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.db.ExecContext(ctx, `INSERT OR REPLACE INTO ingest_runs (
			run_id, kind, started_at, finished_at, gated,
			healthy, bootstrapped, updated, skipped, failed,
			dropped_rows, failed_symbols, error, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, string(summary.Kind),
		summary.StartedAt.UnixMilli(), summary.FinishedAt.UnixMilli(), summary.Gated,
		summary.Counts.Healthy, summary.Counts.Bootstrapped, summary.Counts.Updated,
		summary.Counts.Skipped, summary.Counts.Failed, summary.DroppedRows,
		strings.Join(summary.FailedSymbols(), ","), nullString(summary.Error), string(raw),
	)
	if err != nil {
		return fmt.Errorf("runs: sqlite insert run=%s: %w", summary.RunID, err)
	}
	return nil
}

// Latest implements Reader.
func (r *SQLiteRecorder) Latest(ctx context.Context, kind string) (*batch.RunSummary, error) {
	query := `SELECT summary FROM ingest_runs ORDER BY finished_at DESC, id DESC LIMIT 1`
	var args []any
	if k := strings.TrimSpace(kind); k != "" {
		query = `SELECT summary FROM ingest_runs WHERE kind = ? ORDER BY finished_at DESC, id DESC LIMIT 1`
		args = append(args, k)
	}
	var raw string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRuns
		}
		return nil, fmt.Errorf("runs: sqlite latest: %w", err)
	}
	var summary batch.RunSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("runs: sqlite decode: %w", err)
	}
	return &summary, nil
}

// Failures implements FailureReader.
func (r *SQLiteRecorder) Failures(ctx context.Context, symbol string, limit int) ([]batch.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%," + strings.ToUpper(strings.TrimSpace(symbol)) + ",%"
	rows, err := r.db.QueryContext(ctx, `SELECT summary FROM ingest_runs
		WHERE failed > 0 AND ',' || failed_symbols || ',' LIKE ?
		ORDER BY finished_at DESC, id DESC LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: sqlite failures: %w", err)
	}
	defer rows.Close()

	var out []batch.RunSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var summary batch.RunSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("runs: sqlite decode: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
