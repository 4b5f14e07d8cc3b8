package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/config"
	"candlekeep/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Data path: %s", cfg.DataPath),
		fmt.Sprintf("Universe: %s", universeLine(cfg)),
		fmt.Sprintf("Store: %s", storeLine(cfg)),
		fmt.Sprintf("Concurrency: %d (run timeout %s)", cfg.Engine.Batch.Concurrency, cfg.Engine.Batch.RunTimeout),
		fmt.Sprintf("Retry: %d attempts, base %s, max %s", cfg.Engine.Retry.MaxAttempts, cfg.Engine.Retry.BaseDelay, cfg.Engine.Retry.MaxDelay),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("SQLite recorder: %s", presence(cfg.Recorder.SQLite != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		sectionLine("Market config", cfg.Market),
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func universeLine(cfg *config.Config) string {
	n := len(cfg.Symbols())
	if cfg.Universe.File != "" {
		return fmt.Sprintf("%d symbols from %s", n, cfg.Universe.File)
	}
	return fmt.Sprintf("%d symbols", n)
}

func storeLine(cfg *config.Config) string {
	switch cfg.Store.Type {
	case "filesystem", "":
		return fmt.Sprintf("filesystem %s", cfg.Store.Root)
	case "s3", "spaces":
		return fmt.Sprintf("%s bucket=%s", cfg.Store.Type, cfg.Store.Bucket)
	default:
		return cfg.Store.Type
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
