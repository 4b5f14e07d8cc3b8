package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"candlekeep/internal/batch"
	"candlekeep/internal/cli"
	"candlekeep/internal/config"
	"candlekeep/internal/scheduler"
	"candlekeep/internal/svc"
)

const shutdownTimeout = 30 * time.Second // Grace period for in-flight runs

var (
	configFile = flag.String("f", config.DefaultPath(), "the config file")
	runOnStart = flag.String("now", "", "run one batch kind (update|rebuild|health) at start-up")
	once       = flag.Bool("once", false, "exit after the -now run instead of scheduling")
)

func main() {
	flag.Parse()

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config: %v", err)
	}
	logx.MustSetup(appCfg.Log)
	defer logx.Close()
	cli.LogConfigSummary(appCfg)

	svcCtx, err := svc.New(*appCfg)
	if err != nil {
		log.Fatalf("[main] Failed to build service context: %v", err)
	}
	defer svcCtx.Close()

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(ctx, appCfg.Schedule, svcCtx.Runner, appCfg.Symbols(), appCfg.Engine.Batch.RunTimeout)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	if *runOnStart != "" {
		kind, err := batch.ParseKind(*runOnStart)
		if err != nil {
			log.Fatalf("[main] -now: %v", err)
		}
		if *once {
			if _, err := sched.RunNow(kind); err != nil {
				os.Exit(1)
			}
			return
		}
		sched.TriggerAsync(kind)
	}

	n, err := sched.RegisterAll()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	if n == 0 {
		logx.Info("[main] every job is disabled, nothing to schedule")
	}
	sched.Start()
	logx.Infof("[main] Cron started with %d jobs for %d symbols. Press Ctrl+C to stop.", n, len(appCfg.Symbols()))

	<-ctx.Done()
	logx.Info("[main] Shutdown signal received, waiting for runs...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logx.Errorf("[main] Shutdown timeout exceeded: %v", err)
		return
	}
	logx.Info("[main] Cron stopped")
}
