package cache

import (
	"strings"
	"time"

	"candlekeep/internal/config"
)

// Namespace is the Redis key prefix for candlekeep.
const Namespace = "candlekeep"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 24*time.Hour),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Run Keys ---------------------------------------------------------------

// RunLatestKey caches the most recent summary of a run kind.
func RunLatestKey(kind string) string {
	return formatKey("run", "latest", kind)
}

// RunLatestAnyKey caches the most recent summary regardless of kind.
func RunLatestAnyKey() string {
	return formatKey("run", "latest")
}

// RunKey caches one summary by run ID.
func RunKey(runID string) string {
	return formatKey("run", "id", runID)
}

// --- TTL Helpers ------------------------------------------------------------

// RunLatestTTL keeps the latest summary around between scheduled runs.
func RunLatestTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// RunTTL returns the TTL for per-run summaries.
func RunTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}
