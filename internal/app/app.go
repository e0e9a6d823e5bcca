package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/live-links/external/linkprobe"
	"github.com/riskibarqy/live-links/external/schedule"
	"github.com/riskibarqy/live-links/external/source"
	"github.com/riskibarqy/live-links/internal/config"
	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/event"
	"github.com/riskibarqy/live-links/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/live-links/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/live-links/internal/interfaces/httpapi"
	"github.com/riskibarqy/live-links/internal/interfaces/streamproxy"
	"github.com/riskibarqy/live-links/internal/jobs"
	"github.com/riskibarqy/live-links/internal/observability"
	"github.com/riskibarqy/live-links/internal/platform/browser"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/platform/resilience"
	"github.com/riskibarqy/live-links/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

// App owns the HTTP server, the optional job scheduler and the database
// handle they share.
type App struct {
	Server    *http.Server
	Scheduler *jobs.Scheduler

	db     *sqlx.DB
	logger *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	var pipelineMetrics usecase.PipelineMetrics
	var proxyMetrics streamproxy.Metrics
	var jobMetrics jobs.Metrics
	var breakerMetrics circuitMetrics
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metrics := observability.NewMetrics()
		pipelineMetrics, proxyMetrics, jobMetrics, breakerMetrics = metrics, metrics, metrics, metrics
		metricsHandler = metrics.Handler()
	}

	a := &App{logger: logger}
	events, snapshots, err := a.openRepositories(cfg)
	if err != nil {
		return nil, err
	}

	profile := browser.NewProfile(cfg.BrowserUserAgents, cfg.BrowserAcceptLanguage)
	onBreakerChange := watchBreakers(logger.Named("circuit"), breakerMetrics)

	descriptors, err := source.ParseDescriptors(cfg.Sources)
	if err != nil {
		_ = a.closeDB()
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	fetcher := source.NewFetcher(source.FetcherConfig{
		Timeout:       cfg.SourceTimeout,
		MaxRetries:    cfg.SourceMaxRetries,
		RatePerSecond: cfg.SourceRatePerSecond,
		Burst:         cfg.SourceBurst,
		Profile:       profile,
		Logger:        logger.Named("source"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.SourceCircuitEnabled,
			FailureThreshold: cfg.SourceCircuitFailures,
			OpenTimeout:      cfg.SourceCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.SourceCircuitHalfOpenMax,
			OnStateChange:    onBreakerChange,
		},
	})
	adapters, err := source.NewAll(descriptors, fetcher)
	if err != nil {
		_ = a.closeDB()
		return nil, fmt.Errorf("build source adapters: %w", err)
	}
	if len(adapters) == 0 {
		logger.Warn("no listing sources configured, scans will return an empty pool")
	}

	scheduleBreaker := resilience.DefaultCircuitBreakerConfig()
	scheduleBreaker.OnStateChange = onBreakerChange
	scheduleClient := schedule.NewClient(schedule.ClientConfig{
		BaseURL:        cfg.ScheduleBaseURL,
		Timeout:        cfg.ScheduleTimeout,
		MaxRetries:     cfg.ScheduleMaxRetries,
		Logger:         logger.Named("schedule"),
		CircuitBreaker: scheduleBreaker,
	})
	prober := linkprobe.New(linkprobe.Config{
		Timeout: cfg.HealthTimeout,
		Profile: profile,
	})

	scanSvc := usecase.NewScanService(adapters, snapshots, usecase.ScanConfig{
		BatchTimeout: cfg.ScanBatchTimeout,
		Concurrency:  cfg.ScanConcurrency,
		CacheTTL:     cfg.ScanCacheTTL,
	}, pipelineMetrics, logger.Named("scan"))
	assignSvc := usecase.NewLinkAssignerService(scheduleClient, scanSvc, events, cfg.EmbedProviders, usecase.AssignConfig{
		Leagues:     cfg.AssignLeagues,
		BatchSize:   cfg.AssignBatchSize,
		BatchPause:  cfg.AssignBatchPause,
		WindowLead:  cfg.AssignWindowLead,
		WindowGrace: cfg.AssignWindowGrace,
	}, pipelineMetrics, logger.Named("assign"))
	healthSvc := usecase.NewLinkHealthService(events, prober, usecase.HealthConfig{
		Concurrency: cfg.HealthConcurrency,
		StaleAfter:  cfg.HealthStaleAfter,
	}, pipelineMetrics, logger.Named("health"))

	proxy := streamproxy.NewHandler(streamproxy.Config{
		Timeout:             cfg.ProxyTimeout,
		SegmentCacheSeconds: cfg.ProxySegmentCacheSeconds,
		Path:                cfg.ProxyPath,
		Profile:             profile,
		Metrics:             proxyMetrics,
		Logger:              logger.Named("proxy"),
	})

	handler := httpapi.NewHandler(scanSvc, assignSvc, healthSvc, logger)
	router := httpapi.NewRouter(handler, proxy, metricsHandler, logger, httpapi.RouterConfig{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminToken:         cfg.AdminToken,
		ProxyPath:          cfg.ProxyPath,
	})

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.JobsEnabled {
		scheduler := jobs.NewScheduler(logger, jobMetrics)
		scanJob := jobs.ScanAssignJob(cfg.ScanSchedule, cfg.ScanJobTimeout, scanSvc, assignSvc, logger.Named("jobs"))
		scanJob.RunOnStart = cfg.JobsRunOnStart
		healthJob := jobs.HealthCheckJob(cfg.HealthSchedule, cfg.HealthJobTimeout, healthSvc, logger.Named("jobs"))
		for _, job := range []jobs.Job{scanJob, healthJob} {
			if err := scheduler.Register(job); err != nil {
				_ = a.closeDB()
				return nil, fmt.Errorf("register job: %w", err)
			}
		}
		a.Scheduler = scheduler
	}

	return a, nil
}

// Start begins scheduled jobs. The HTTP server is started by the caller.
func (a *App) Start() {
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}
}

// Shutdown stops the HTTP server and the scheduler, then closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if err := a.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) openRepositories(cfg config.Config) (event.Repository, candidate.SnapshotRepository, error) {
	if cfg.DBURL == "" {
		a.logger.Warn("DB_URL is empty, using in-memory repositories")
		return memory.NewEventRepository(nil), memory.NewScrapedLinkRepository(), nil
	}

	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.ServiceName),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithQueryFormatter(redactQueryForTrace),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	a.db = db
	return postgres.NewEventRepository(db), postgres.NewScrapedLinkRepository(db), nil
}

func (a *App) closeDB() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
