package compact

import (
	"fmt"

	"candlekeep/pkg/candle"
)

// State names a step of the compact update machine.
type State string

const (
	HealthGate  State = "health_gate"
	FetchQuote  State = "fetch_quote"
	LoadHistory State = "load_history"
	Merge       State = "merge"
	Persist1m   State = "persist_1min"
	Resample30  State = "resample_30min"
	Persist30m  State = "persist_30min"

	Done    State = "done"
	Failed  State = "failed"
	Skipped State = "skipped"
)

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == Done || s == Failed || s == Skipped
}

// Action is what a cycle did to the stored 1min series.
type Action string

const (
	Appended       Action = Action(candle.Appended)
	UpdatedInPlace Action = Action(candle.UpdatedInPlace)
	Discarded      Action = Action(candle.Discarded)
	Bootstrapped   Action = "bootstrapped"
)

// Summary reports one Apply call.
type Summary struct {
	Symbol  string `json:"symbol"`
	State   State  `json:"state"`
	Action  Action `json:"action,omitempty"`
	Rows1m  int    `json:"rows1m"`
	Rows30m int    `json:"rows30m"`
	// Note carries non-fatal diagnostics, e.g. a series still deficient
	// after its bootstrap.
	Note string `json:"note,omitempty"`
}

// Error ties a failure to the state it happened in.
type Error struct {
	Symbol string
	State  State
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compact: symbol=%s state=%s: %v", e.Symbol, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
