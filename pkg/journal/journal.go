package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer persists records to a directory as one JSON file each (journal style).
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// Dir returns the journal directory.
func (w *Writer) Dir() string { return w.dir }

// Write marshals v to {prefix}_{ts}_{seq}.json. A zero ts uses the current time.
func (w *Writer) Write(prefix string, ts time.Time, v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if prefix == "" {
		prefix = "record"
	}
	if ts.IsZero() {
		ts = w.nowFn()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("journal: marshal %s: %w", prefix, err)
	}

	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	name := fmt.Sprintf("%s_%s_%05d.json", prefix, ts.UTC().Format("20060102_150405"), seq)
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
