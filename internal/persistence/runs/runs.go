// Package runs persists batch run summaries to Postgres, SQLite, Redis and
// a JSON journal.
package runs

import (
	"context"
	"errors"

	"candlekeep/internal/batch"
)

// ErrNoRuns is returned when no summary has been recorded yet.
var ErrNoRuns = errors.New("runs: no run recorded")

// Reader returns the most recent summary. An empty kind matches any kind.
type Reader interface {
	Latest(ctx context.Context, kind string) (*batch.RunSummary, error)
}

// FailureReader lists recent runs in which symbol failed, newest first.
type FailureReader interface {
	Failures(ctx context.Context, symbol string, limit int) ([]batch.RunSummary, error)
}

// Store records and reads summaries.
type Store interface {
	batch.Recorder
	Reader
}

// Multi fans Record out to every recorder and reads from the first reader
// that has a summary.
type Multi struct {
	recorders []batch.Recorder
}

// NewMulti drops nil recorders.
func NewMulti(recorders ...batch.Recorder) *Multi {
	m := &Multi{}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

// Len reports how many recorders are wired.
func (m *Multi) Len() int { return len(m.recorders) }

// Record writes to all recorders and joins their errors.
func (m *Multi) Record(ctx context.Context, summary batch.RunSummary) error {
	var errs []error
	for _, r := range m.recorders {
		if err := r.Record(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Latest asks each recorder that can read, in order.
func (m *Multi) Latest(ctx context.Context, kind string) (*batch.RunSummary, error) {
	var errs []error
	for _, r := range m.recorders {
		reader, ok := r.(Reader)
		if !ok {
			continue
		}
		summary, err := reader.Latest(ctx, kind)
		if err == nil {
			return summary, nil
		}
		if !errors.Is(err, ErrNoRuns) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return nil, ErrNoRuns
}

// Failures asks each recorder that can list failures, in order. No such
// recorder yields an empty list.
func (m *Multi) Failures(ctx context.Context, symbol string, limit int) ([]batch.RunSummary, error) {
	for _, r := range m.recorders {
		reader, ok := r.(FailureReader)
		if !ok {
			continue
		}
		out, err := reader.Failures(ctx, symbol, limit)
		if errors.Is(err, ErrNoRuns) {
			continue
		}
		return out, err
	}
	return nil, nil
}
