package svc

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	"candlekeep/internal/batch"
	cachekeys "candlekeep/internal/cache"
	"candlekeep/internal/compact"
	"candlekeep/internal/config"
	"candlekeep/internal/fullfetch"
	"candlekeep/internal/health"
	"candlekeep/internal/model"
	"candlekeep/internal/persistence/runs"
	"candlekeep/pkg/calendar"
	marketpkg "candlekeep/pkg/market"
	_ "candlekeep/pkg/market/alphavantage"
	_ "candlekeep/pkg/market/fixture"
	"candlekeep/pkg/retry"
	"candlekeep/pkg/store"
	_ "candlekeep/pkg/store/filestore"
	_ "candlekeep/pkg/store/redisstore"
	_ "candlekeep/pkg/store/s3store"
)

type ServiceContext struct {
	Config config.Config

	Calendar        *calendar.Calendar
	Objects         store.ObjectStore
	Series          *store.SeriesStore
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	Retry     *retry.Controller
	Health    *health.Monitor
	FullFetch *fullfetch.Engine
	Compact   *compact.Engine
	Runner    *batch.Runner

	// Run persistence; every backend is optional.
	Runs            *runs.Multi
	Redis           *redis.Redis
	Cache           gocache.Cache
	DBConn          sqlx.SqlConn
	IngestRunsModel model.IngestRunsModel
	SQLite          *runs.SQLiteRecorder
}

// NewServiceContext wires every component and exits on misconfiguration.
func NewServiceContext(c config.Config) *ServiceContext {
	svc, err := New(c)
	if err != nil {
		log.Fatalf("failed to build service context: %v", err)
	}
	return svc
}

// New wires every component from c.
func New(c config.Config) (*ServiceContext, error) {
	svc := &ServiceContext{Config: c}

	cal, err := calendar.New()
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	svc.Calendar = cal

	objects, err := store.New(c.Store)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}
	svc.Objects = objects
	svc.Series = store.NewSeriesStore(objects, c.Store.Prefix)

	if c.Market.Value == nil {
		return nil, errors.New("market section is required")
	}
	providers, err := c.Market.Value.BuildProviders()
	if err != nil {
		return nil, fmt.Errorf("build market providers: %w", err)
	}
	svc.MarketProviders = providers
	if c.Market.Value.Default != "" {
		svc.DefaultMarket = providers[c.Market.Value.Default]
	}
	if svc.DefaultMarket == nil {
		return nil, errors.New("market config: no default provider")
	}

	svc.Retry = retry.New(c.Engine.Retry)
	svc.Health = health.NewMonitor(svc.Series, c.Engine.Health)
	svc.FullFetch = fullfetch.New(svc.DefaultMarket, svc.Series, svc.Retry, cal, c.Engine.Retention)
	svc.Compact = compact.New(compact.Deps{
		Health:    svc.Health,
		Rebuilder: svc.FullFetch,
		Provider:  svc.DefaultMarket,
		Series:    svc.Series,
		Retry:     svc.Retry,
		Calendar:  cal,
		Retention: c.Engine.Retention,
	})

	if err := svc.initRunStores(); err != nil {
		return nil, err
	}

	svc.Runner = batch.NewRunner(c.Engine.Batch, batch.Deps{
		Updater:   svc.Compact,
		Rebuilder: svc.FullFetch,
		Health:    svc.Health,
		Gate:      cal,
		Provider:  svc.DefaultMarket,
		Recorder:  svc.Runs,
	})
	return svc, nil
}

func (svc *ServiceContext) initRunStores() error {
	c := svc.Config
	ttl := cachekeys.NewTTLSet(c.TTL)

	if c.Redis.Host != "" {
		rds, err := redis.NewRedis(c.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		svc.Redis = rds
		svc.Cache = gocache.NewNode(rds, syncx.NewSingleFlight(), gocache.NewStat("candlekeep"), model.ErrNotFound)
	}

	// Only inject DB models when DSN provided; goctl models cache through Redis.
	if c.Postgres.DSN != "" {
		if c.Redis.Host == "" {
			logx.Errorf("svc: postgres recorder needs redis for its row cache, skipping")
		} else {
			db, err := sql.Open("pgx", c.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			db.SetMaxOpenConns(c.Postgres.MaxOpen)
			db.SetMaxIdleConns(c.Postgres.MaxIdle)
			svc.DBConn = sqlx.NewSqlConnFromDB(db)
			svc.IngestRunsModel = model.NewIngestRunsModel(svc.DBConn, gocache.CacheConf{{RedisConf: c.Redis, Weight: 100}})
		}
	}

	var recorders []batch.Recorder
	if s := runs.NewService(runs.Config{RunsModel: svc.IngestRunsModel, Cache: svc.Cache, TTL: ttl}); s != nil {
		recorders = append(recorders, s)
	}
	if c.Recorder.SQLite != "" {
		path := c.ResolveData(c.Recorder.SQLite)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create sqlite dir: %w", err)
		}
		rec, err := runs.NewSQLiteRecorder(path)
		if err != nil {
			return err
		}
		svc.SQLite = rec
		recorders = append(recorders, rec)
	}
	if c.Recorder.Journal {
		recorders = append(recorders, runs.NewJournalRecorder(c.ResolveData("journal")))
	}
	svc.Runs = runs.NewMulti(recorders...)
	return nil
}

// Close releases resources that outlive a request.
func (svc *ServiceContext) Close() {
	if svc.SQLite != nil {
		if err := svc.SQLite.Close(); err != nil {
			logx.Errorf("svc: close sqlite: %v", err)
		}
	}
}
