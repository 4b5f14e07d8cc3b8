// Package scheduler drives batch runs from cron specs.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"candlekeep/internal/batch"
	"candlekeep/internal/config"
)

// Off disables a job when used as its spec.
const Off = "off"

// BatchRunner is the part of batch.Runner the scheduler drives.
type BatchRunner interface {
	Run(ctx context.Context, kind batch.Kind, symbols []string) (batch.RunSummary, error)
}

// Scheduler owns the cron instance. Runs of the same kind never overlap; a
// tick that finds its kind still running is dropped.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.ScheduleConf
	runner  BatchRunner
	symbols []string
	timeout time.Duration
	ctx     context.Context

	running map[batch.Kind]*atomic.Bool
	wg      sync.WaitGroup
}

// New builds a scheduler in the configured time zone. timeout bounds each
// run; zero leaves the runner's own deadline in charge.
func New(ctx context.Context, cfg config.ScheduleConf, runner BatchRunner, symbols []string, timeout time.Duration) (*Scheduler, error) {
	tz := strings.TrimSpace(cfg.TimeZone)
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler: time zone %q: %w", tz, err)
	}
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		cfg:     cfg,
		runner:  runner,
		symbols: symbols,
		timeout: timeout,
		ctx:     ctx,
		running: map[batch.Kind]*atomic.Bool{
			batch.KindUpdate:  {},
			batch.KindRebuild: {},
			batch.KindHealth:  {},
		},
	}, nil
}

// RegisterAll adds the update, rebuild and health jobs. It returns the
// number of jobs registered.
func (s *Scheduler) RegisterAll() (int, error) {
	jobs := []struct {
		kind batch.Kind
		spec string
	}{
		{batch.KindUpdate, s.cfg.Update},
		{batch.KindRebuild, s.cfg.Rebuild},
		{batch.KindHealth, s.cfg.Health},
	}
	n := 0
	for _, job := range jobs {
		spec := strings.TrimSpace(job.spec)
		if spec == "" || strings.EqualFold(spec, Off) {
			logx.Infof("scheduler: %s job disabled", job.kind)
			continue
		}
		kind := job.kind
		if _, err := s.cron.AddFunc(spec, func() { s.trigger(kind) }); err != nil {
			return n, fmt.Errorf("scheduler: register %s job %q: %w", kind, spec, err)
		}
		logx.Infof("scheduler: %s job registered spec=%q", kind, spec)
		n++
	}
	return n, nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	logx.Info("scheduler: started")
}

// Stop stops scheduling and waits for in-flight runs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logx.Info("scheduler: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// TriggerAsync starts a run of kind in the background, subject to the same
// overlap rule as scheduled runs.
func (s *Scheduler) TriggerAsync(kind batch.Kind) {
	s.wg.Add(1)
	threading.GoSafe(func() {
		defer s.wg.Done()
		s.trigger(kind)
	})
}

func (s *Scheduler) trigger(kind batch.Kind) {
	flag, ok := s.running[kind]
	if !ok {
		logx.Errorf("scheduler: unknown kind %q", kind)
		return
	}
	if !flag.CompareAndSwap(false, true) {
		logx.Infof("scheduler: %s run still in progress, tick skipped", kind)
		return
	}
	defer flag.Store(false)
	_, _ = s.RunNow(kind)
}

// RunNow executes one run of kind synchronously, ignoring the overlap rule.
func (s *Scheduler) RunNow(kind batch.Kind) (batch.RunSummary, error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	summary, err := s.runner.Run(ctx, kind, s.symbols)
	took := time.Since(start).Milliseconds()
	logger := logx.WithContext(ctx).WithFields(logx.Field("kind", string(kind)), logx.Field("run", summary.RunID))
	if err != nil {
		logger.Errorf("[%s] [ERROR] %v took %dms", kind, err, took)
		return summary, err
	}
	logger.Infof("[%s] [OK] healthy=%d bootstrapped=%d updated=%d skipped=%d failed=%d took %dms",
		kind, summary.Counts.Healthy, summary.Counts.Bootstrapped, summary.Counts.Updated,
		summary.Counts.Skipped, summary.Counts.Failed, took)
	return summary, nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logx.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logx.Errorf("cron: %s err=%v %v", msg, err, keysAndValues)
}
