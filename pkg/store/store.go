package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"candlekeep/pkg/candle"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("store: object not found")

// ObjectStore reads and writes whole blobs. Put replaces any prior object
// atomically from a reader's point of view.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Stamped is implemented by backends that know when a key was last written.
type Stamped interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// Error wraps a backend failure with the operation and key. A failed Put
// leaves the previous object untouched.
type Error struct {
	Op      string
	Key     string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s (%s): %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable lets the retry controller treat backend hiccups as transient.
func (e *Error) Retryable() bool { return !errors.Is(e.Err, ErrNotFound) }

// Wrap annotates err for op/key unless it is nil or ErrNotFound.
func Wrap(backend, op, key string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Key: key, Backend: backend, Err: err}
}

// Keyer maps (symbol, interval) to object keys.
type Keyer struct {
	Prefix string
}

// Key returns {prefix}/{folder}/{SYMBOL}.csv.
func (k Keyer) Key(symbol string, interval candle.Interval) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	return path.Join(strings.Trim(k.Prefix, "/"), interval.Folder(), sym+".csv")
}
