package candle

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingColumns is returned when a CSV header lacks a required column.
var ErrMissingColumns = errors.New("candle: missing required columns")

// RowError describes a row rejected at the parse/validate boundary.
type RowError struct {
	Row       int
	Timestamp time.Time
	Reason    string
}

func (e RowError) Error() string {
	if e.Timestamp.IsZero() {
		return fmt.Sprintf("candle: row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("candle: row %d (%s): %s", e.Row, e.Timestamp.Format(time.RFC3339), e.Reason)
}

// RowErrors aggregates dropped rows so callers can log a single line.
type RowErrors []RowError

func (e RowErrors) Error() string {
	if len(e) == 0 {
		return "candle: no row errors"
	}
	const maxShown = 3
	parts := make([]string, 0, maxShown)
	for i, re := range e {
		if i == maxShown {
			break
		}
		parts = append(parts, re.Error())
	}
	if len(e) > maxShown {
		return fmt.Sprintf("%d rows dropped: %s (and %d more)", len(e), strings.Join(parts, "; "), len(e)-maxShown)
	}
	return fmt.Sprintf("%d rows dropped: %s", len(e), strings.Join(parts, "; "))
}
