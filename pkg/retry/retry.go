package retry

import (
	"context"
	"errors"
	"math"
	"net"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	MinAttempts = 6
	MaxAttempts = 9

	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 2 * time.Minute
	defaultMultiplier = 2.0
)

// Policy encapsulates the exponential backoff budget for one provider call.
type Policy struct {
	MaxAttempts    int           `json:",default=6"`
	BaseDelay      time.Duration `json:",default=2s"`
	MaxDelay       time.Duration `json:",default=2m"`
	Multiplier     float64       `json:",default=2"`
	AttemptTimeout time.Duration `json:",default=30s"`
}

// Normalize clamps the attempt budget into [MinAttempts, MaxAttempts] and
// fills unset delays with defaults.
func (p Policy) Normalize() Policy {
	switch {
	case p.MaxAttempts < MinAttempts:
		p.MaxAttempts = MinAttempts
	case p.MaxAttempts > MaxAttempts:
		p.MaxAttempts = MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier <= 1 {
		p.Multiplier = defaultMultiplier
	}
	return p
}

// Delay returns the wait before attempt n+1, where n counts from 1.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	return time.Duration(math.Min(d, float64(p.MaxDelay)))
}

// Target labels the unit of work a retry budget belongs to.
type Target struct {
	Symbol   string
	Interval string
	Op       string
}

// Attempt records the outcome of one try; it is only logged.
type Attempt struct {
	Number  int
	Outcome string
	Latency time.Duration
	Err     error
}

// Controller executes operations under a Policy.
type Controller struct {
	policy    Policy
	retryable func(error) bool
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option customises a Controller.
type Option func(*Controller)

// WithRetryable replaces the default retry predicate.
func WithRetryable(fn func(error) bool) Option {
	return func(c *Controller) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

// WithSleep replaces the backoff wait; tests use it to skip real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// New constructs a controller with a normalised policy.
func New(policy Policy, opts ...Option) *Controller {
	c := &Controller{
		policy:    policy.Normalize(),
		retryable: IsRetryable,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy.
func (c *Controller) Policy() Policy { return c.policy }

// Do runs op until it returns a value that validate accepts, the error is not
// retryable, or the attempt budget is spent. Exhaustion yields *ProviderError.
// validate may be nil.
func Do[T any](ctx context.Context, c *Controller, target Target, op func(ctx context.Context) (T, error), validate func(T) error) (T, error) {
	var (
		zero    T
		lastErr error
		history = make([]Attempt, 0, c.policy.MaxAttempts)
		logger  = logx.WithContext(ctx)
	)
	for n := 1; n <= c.policy.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		started := time.Now()
		value, err := runAttempt(ctx, c.policy.AttemptTimeout, op)
		if err == nil && validate != nil {
			err = validate(value)
		}
		latency := time.Since(started)

		if err == nil {
			history = append(history, Attempt{Number: n, Outcome: "ok", Latency: latency})
			if n > 1 {
				logger.Infof("retry: %s symbol=%s interval=%s succeeded on attempt %d/%d", target.Op, target.Symbol, target.Interval, n, c.policy.MaxAttempts)
			}
			return value, nil
		}

		lastErr = err
		outcome := "error"
		var stale *StaleDataError
		if errors.As(err, &stale) {
			outcome = "stale"
		}
		history = append(history, Attempt{Number: n, Outcome: outcome, Latency: latency, Err: err})

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !c.retryable(err) {
			logger.Errorf("retry: %s symbol=%s interval=%s attempt=%d non-retryable err=%v", target.Op, target.Symbol, target.Interval, n, err)
			return zero, &ProviderError{Symbol: target.Symbol, Interval: target.Interval, Attempts: n, Err: err, History: history}
		}
		if n == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(n)
		logger.Infof("retry: %s symbol=%s interval=%s attempt=%d/%d outcome=%s wait=%s err=%v",
			target.Op, target.Symbol, target.Interval, n, c.policy.MaxAttempts, outcome, delay, err)
		if err := c.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	logger.Errorf("retry: %s symbol=%s interval=%s exhausted %d attempts err=%v", target.Op, target.Symbol, target.Interval, len(history), lastErr)
	return zero, &ProviderError{Symbol: target.Symbol, Interval: target.Interval, Attempts: len(history), Err: lastErr, History: history}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable is implemented by provider errors that know whether a retry helps.
type retryable interface {
	Retryable() bool
}

// IsRetryable is the default predicate: stale data and transient transport or
// provider failures are retried; cancellation and permanent errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		// A per-attempt timeout surfaces as DeadlineExceeded; Do checks the
		// parent context separately.
		return true
	}

	var stale *StaleDataError
	if errors.As(err, &stale) {
		return true
	}

	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
