package batch

import (
	"errors"
	"time"
)

var (
	// ErrNoSymbols rejects a run over an empty universe.
	ErrNoSymbols = errors.New("batch: no symbols to process")
	// ErrNoSuccess marks a run in which every symbol failed.
	ErrNoSuccess = errors.New("batch: zero symbols succeeded")
	// ErrMissingCredential rejects a run when the provider has no API key.
	ErrMissingCredential = errors.New("batch: provider credential missing")
	// ErrUnknownKind rejects an unsupported run kind.
	ErrUnknownKind = errors.New("batch: unknown run kind")
)

// Kind selects what a run does per symbol.
type Kind string

const (
	KindUpdate  Kind = "update"
	KindRebuild Kind = "rebuild"
	KindHealth  Kind = "health"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUpdate, KindRebuild, KindHealth:
		return k, nil
	}
	return "", ErrUnknownKind
}

// Outcome is the per-symbol result class reported in a RunSummary.
type Outcome string

const (
	OutcomeHealthy      Outcome = "healthy"
	OutcomeBootstrapped Outcome = "bootstrapped"
	OutcomeUpdated      Outcome = "updated"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
)

// SymbolOutcome is one symbol's line in the run summary.
type SymbolOutcome struct {
	Symbol     string  `json:"symbol"`
	Outcome    Outcome `json:"outcome"`
	State      string  `json:"state,omitempty"`
	Action     string  `json:"action,omitempty"`
	Rows1m     int     `json:"rows1m,omitempty"`
	Rows30m    int     `json:"rows30m,omitempty"`
	RowsDaily  int     `json:"rowsDaily,omitempty"`
	Dropped    int     `json:"dropped,omitempty"`
	Note       string  `json:"note,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMs int64   `json:"durationMs"`
}

// Counts tallies outcomes.
type Counts struct {
	Healthy      int `json:"healthy"`
	Bootstrapped int `json:"bootstrapped"`
	Updated      int `json:"updated"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

func (c *Counts) add(o Outcome) {
	switch o {
	case OutcomeHealthy:
		c.Healthy++
	case OutcomeBootstrapped:
		c.Bootstrapped++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeFailed:
		c.Failed++
	}
}

// Succeeded counts symbols that were processed without failure.
func (c Counts) Succeeded() int {
	return c.Healthy + c.Bootstrapped + c.Updated
}

// RunSummary reports a whole batch.
type RunSummary struct {
	RunID       string          `json:"runId"`
	Kind        Kind            `json:"kind"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
	Gated       bool            `json:"gated,omitempty"`
	Counts      Counts          `json:"counts"`
	Outcomes    []SymbolOutcome `json:"outcomes"`
	DroppedRows int             `json:"droppedRows"`
	Error       string          `json:"error,omitempty"`
}

// Duration is FinishedAt - StartedAt.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailedSymbols lists symbols whose outcome is Failed.
func (s RunSummary) FailedSymbols() []string {
	var out []string
	for _, o := range s.Outcomes {
		if o.Outcome == OutcomeFailed {
			out = append(out, o.Symbol)
		}
	}
	return out
}
