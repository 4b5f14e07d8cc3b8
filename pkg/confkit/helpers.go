package confkit

import (
	"fmt"
	"os"
	"strings"
	"time"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	if _, err := os.Stat(p); err == nil {
		return true
	}
	return false
}

// Expand substitutes ${VAR} references and trims surrounding whitespace.
func Expand(s string) string {
	return strings.TrimSpace(os.ExpandEnv(s))
}

// PositiveDuration parses raw as a duration named field. Empty input yields
// zero so callers can fall back to their defaults.
func PositiveDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, d)
	}
	return d, nil
}
