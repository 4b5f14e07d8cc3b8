package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"candlekeep/internal/compact"
	"candlekeep/internal/fullfetch"
	"candlekeep/internal/health"
	"candlekeep/pkg/candle"
	"candlekeep/pkg/market"
)

// Updater runs one compact update cycle.
type Updater interface {
	Apply(ctx context.Context, symbol string) (compact.Summary, error)
}

// Rebuilder replaces stored series from the provider.
type Rebuilder interface {
	Rebuild(ctx context.Context, symbol string, interval candle.Interval) (fullfetch.Result, error)
	RebuildAll(ctx context.Context, symbol string) ([]fullfetch.Result, error)
}

// Checker classifies stored series.
type Checker interface {
	health.Checker
	CheckAll(ctx context.Context, symbol string) []health.Status
}

// SessionGate reports whether any trading session is live.
type SessionGate interface {
	IsTradingNow() bool
}

// Recorder persists finished run summaries. Failures are logged, not returned.
type Recorder interface {
	Record(ctx context.Context, summary RunSummary) error
}

// Config bounds a run.
type Config struct {
	Concurrency       int           `json:",default=4"`
	RunTimeout        time.Duration `json:",default=10m"`
	IgnoreSessionGate bool          `json:",optional"`
}

// Deps bundles the runner's collaborators. Recorder and Provider are optional.
type Deps struct {
	Updater   Updater
	Rebuilder Rebuilder
	Health    Checker
	Gate      SessionGate
	Provider  market.Provider
	Recorder  Recorder
}

// Runner fans a run out over a bounded pool with per-symbol serialisation.
type Runner struct {
	cfg   Config
	deps  Deps
	locks *keyedMutex
	now   func() time.Time
}

// NewRunner builds a runner.
func NewRunner(cfg Config, deps Deps) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{cfg: cfg, deps: deps, locks: newKeyedMutex(), now: time.Now}
}

// Run processes symbols for kind and returns the summary. The error is
// non-nil when a precondition fails or no symbol succeeds; the summary is
// still populated in the latter case.
func (r *Runner) Run(ctx context.Context, kind Kind, symbols []string) (RunSummary, error) {
	summary := RunSummary{
		RunID:     uuid.NewString(),
		Kind:      kind,
		StartedAt: r.now().UTC(),
	}
	logger := logx.WithContext(ctx).WithFields(logx.Field("run", summary.RunID), logx.Field("kind", string(kind)))

	symbols = normalizeSymbols(symbols)
	if err := r.preflight(kind, symbols); err != nil {
		metricRuns.Inc(string(kind), "rejected")
		logger.Errorf("batch: run rejected err=%v", err)
		return summary, err
	}

	if kind == KindUpdate && !r.cfg.IgnoreSessionGate && r.deps.Gate != nil && !r.deps.Gate.IsTradingNow() {
		summary.Gated = true
		for _, sym := range symbols {
			o := SymbolOutcome{Symbol: sym, Outcome: OutcomeSkipped, Note: "market closed"}
			summary.Outcomes = append(summary.Outcomes, o)
			summary.Counts.add(o.Outcome)
		}
		summary.FinishedAt = r.now().UTC()
		logger.Infof("batch: market closed, %d symbols skipped", len(symbols))
		r.record(ctx, summary)
		return summary, nil
	}

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	outcomes := make([]SymbolOutcome, len(symbols))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			outcomes[i] = r.process(runCtx, kind, sym)
			return nil
		})
	}
	_ = g.Wait()

	summary.Outcomes = outcomes
	for _, o := range outcomes {
		summary.Counts.add(o.Outcome)
		summary.DroppedRows += o.Dropped
	}
	summary.FinishedAt = r.now().UTC()

	var err error
	if summary.Counts.Failed == len(symbols) {
		err = fmt.Errorf("%w: %d of %d failed", ErrNoSuccess, summary.Counts.Failed, len(symbols))
		summary.Error = err.Error()
		metricRuns.Inc(string(kind), "failed")
	} else {
		metricRuns.Inc(string(kind), "ok")
	}
	logger.Infof("batch: finished healthy=%d bootstrapped=%d updated=%d skipped=%d failed=%d dropped=%d took=%dms",
		summary.Counts.Healthy, summary.Counts.Bootstrapped, summary.Counts.Updated,
		summary.Counts.Skipped, summary.Counts.Failed, summary.DroppedRows, summary.Duration().Milliseconds())
	r.record(ctx, summary)
	return summary, err
}

func (r *Runner) preflight(kind Kind, symbols []string) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return fmt.Errorf("%w: %q", err, kind)
	}
	if len(symbols) == 0 {
		return ErrNoSymbols
	}
	if kind != KindHealth || r.deps.Rebuilder != nil {
		if cred, ok := r.deps.Provider.(market.Credentialed); ok && !cred.HasCredential() {
			return ErrMissingCredential
		}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, summary RunSummary) {
	if r.deps.Recorder == nil {
		return
	}
	// The run context may be spent; recording still gets a short window.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.deps.Recorder.Record(recCtx, summary); err != nil {
		logx.WithContext(ctx).Errorf("batch: record run=%s err=%v", summary.RunID, err)
	}
}

// process is the symbol boundary: every error is caught here.
func (r *Runner) process(ctx context.Context, kind Kind, symbol string) (out SymbolOutcome) {
	started := time.Now()
	out.Symbol = symbol
	defer func() {
		if p := recover(); p != nil {
			out.Outcome = OutcomeFailed
			out.Error = fmt.Sprintf("panic: %v", p)
			logx.WithContext(ctx).Errorf("batch: panic symbol=%s kind=%s: %v", symbol, kind, p)
		}
		out.DurationMs = time.Since(started).Milliseconds()
		metricSymbols.Inc(string(kind), string(out.Outcome))
		metricSymbolDuration.Observe(out.DurationMs, string(kind))
	}()

	if err := ctx.Err(); err != nil {
		out.Outcome, out.Error = OutcomeFailed, err.Error()
		return out
	}

	unlock := r.locks.Lock(symbol)
	defer unlock()

	switch kind {
	case KindUpdate:
		return r.update(ctx, out)
	case KindRebuild:
		return r.rebuild(ctx, out)
	default:
		return r.sweep(ctx, out)
	}
}

func (r *Runner) update(ctx context.Context, out SymbolOutcome) SymbolOutcome {
	sum, err := r.deps.Updater.Apply(ctx, out.Symbol)
	out.State, out.Action = string(sum.State), string(sum.Action)
	out.Rows1m, out.Rows30m, out.Note = sum.Rows1m, sum.Rows30m, sum.Note
	if err != nil {
		out.Outcome, out.Error = OutcomeFailed, err.Error()
		logx.WithContext(ctx).Errorf("batch: update failed symbol=%s err=%v", out.Symbol, err)
		return out
	}
	out.Outcome = updateOutcome(sum)
	return out
}

func updateOutcome(sum compact.Summary) Outcome {
	switch sum.State {
	case compact.Skipped:
		return OutcomeBootstrapped
	case compact.Done:
		if sum.Action == compact.Discarded {
			return OutcomeHealthy
		}
		return OutcomeUpdated
	default:
		return OutcomeFailed
	}
}

func (r *Runner) rebuild(ctx context.Context, out SymbolOutcome) SymbolOutcome {
	results, err := r.deps.Rebuilder.RebuildAll(ctx, out.Symbol)
	applyResults(&out, results)
	if err != nil {
		out.Outcome, out.Error = OutcomeFailed, err.Error()
		return out
	}
	out.Outcome = OutcomeBootstrapped
	return out
}

// sweep classifies every interval and rebuilds the unhealthy ones, then
// re-checks them.
func (r *Runner) sweep(ctx context.Context, out SymbolOutcome) SymbolOutcome {
	var bad []candle.Interval
	for _, st := range r.deps.Health.CheckAll(ctx, out.Symbol) {
		if !st.Healthy() {
			bad = append(bad, st.Interval)
		}
	}
	if len(bad) == 0 {
		out.Outcome = OutcomeHealthy
		return out
	}
	if r.deps.Rebuilder == nil {
		out.Outcome, out.Note = OutcomeSkipped, fmt.Sprintf("unhealthy: %s", joinIntervals(bad))
		return out
	}

	var (
		results []fullfetch.Result
		errs    []error
	)
	for _, interval := range bad {
		res, err := r.deps.Rebuilder.Rebuild(ctx, out.Symbol, interval)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	applyResults(&out, results)
	if err := errors.Join(errs...); err != nil {
		out.Outcome, out.Error = OutcomeFailed, err.Error()
		return out
	}

	var still []candle.Interval
	for _, interval := range bad {
		if st := r.deps.Health.Check(ctx, out.Symbol, interval); !st.Healthy() {
			still = append(still, interval)
		}
	}
	if len(still) > 0 {
		out.Note = fmt.Sprintf("still unhealthy after rebuild: %s", joinIntervals(still))
	}
	out.Outcome = OutcomeBootstrapped
	return out
}

func applyResults(out *SymbolOutcome, results []fullfetch.Result) {
	for _, res := range results {
		out.Dropped += res.Dropped
		switch res.Interval {
		case candle.OneMinute:
			out.Rows1m = res.Rows
		case candle.ThirtyMinute:
			out.Rows30m = res.Rows
		case candle.Daily:
			out.RowsDaily = res.Rows
		}
	}
}

// UpdateSymbol runs one compact update outside a batch, honouring the same
// per-symbol lock.
func (r *Runner) UpdateSymbol(ctx context.Context, symbol string) (compact.Summary, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return compact.Summary{}, ErrNoSymbols
	}
	unlock := r.locks.Lock(symbol)
	defer unlock()
	return r.deps.Updater.Apply(ctx, symbol)
}

// RebuildSymbol rebuilds one interval, or every interval when interval is nil.
func (r *Runner) RebuildSymbol(ctx context.Context, symbol string, interval *candle.Interval) ([]fullfetch.Result, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrNoSymbols
	}
	unlock := r.locks.Lock(symbol)
	defer unlock()
	if interval == nil {
		return r.deps.Rebuilder.RebuildAll(ctx, symbol)
	}
	res, err := r.deps.Rebuilder.Rebuild(ctx, symbol, *interval)
	if err != nil {
		return nil, err
	}
	return []fullfetch.Result{res}, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = normalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func joinIntervals(in []candle.Interval) string {
	parts := make([]string, len(in))
	for i, iv := range in {
		parts[i] = iv.String()
	}
	return strings.Join(parts, ",")
}
