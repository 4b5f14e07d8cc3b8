package retry

import (
	"fmt"
	"time"
)

// ProviderError reports a provider call that failed after its retry budget.
type ProviderError struct {
	Symbol   string
	Interval string
	Attempts int
	Err      error
	History  []Attempt
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider: symbol=%s interval=%s failed after %d attempts: %v", e.Symbol, e.Interval, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StaleDataError means the provider answered but the data lags the current
// trading session. It is always retryable.
type StaleDataError struct {
	Symbol   string
	Interval string
	Latest   time.Time
	// SessionStart is the earliest acceptable timestamp: the session start
	// for intraday data, the age cutoff for daily bars.
	SessionStart time.Time
}

func (e *StaleDataError) Error() string {
	if e.Latest.IsZero() {
		return fmt.Sprintf("stale data: symbol=%s interval=%s has no rows (session start %s)",
			e.Symbol, e.Interval, e.SessionStart.Format(time.RFC3339))
	}
	return fmt.Sprintf("stale data: symbol=%s interval=%s latest=%s before session start %s",
		e.Symbol, e.Interval, e.Latest.Format(time.RFC3339), e.SessionStart.Format(time.RFC3339))
}
