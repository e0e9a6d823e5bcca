// Package jobs drives the pipeline on cron schedules inside the API process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. Run receives a context bounded by Timeout.
type Job struct {
	Name       string
	Schedule   string
	Timeout    time.Duration
	Run        func(ctx context.Context) error
	// RunOnStart fires one run as soon as the scheduler starts instead of
	// waiting for the first tick.
	RunOnStart bool
}

// Metrics observes finished runs.
type Metrics interface {
	JobDuration(job string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) JobDuration(string, time.Duration) {}

var errUnknownJob = errors.New("unknown job")

// Scheduler wraps a cron runner whose chain recovers panics and skips a tick
// while the previous run of the same job is still active.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	logger  *logging.Logger
	metrics Metrics

	mu      sync.Mutex
	entries map[string]cron.EntryID
	warmup  []string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(logger *logging.Logger, metrics Metrics) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger = logger.Named("jobs")

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLog := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		parser:  parser,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register validates the schedule and adds the job. Names must be unique.
func (s *Scheduler) Register(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	job.Schedule = strings.TrimSpace(job.Schedule)
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	schedule, err := s.parser.Parse(job.Schedule)
	if err != nil {
		return fmt.Errorf("parse schedule for job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("job %s is already registered", job.Name)
	}

	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.execute(job)
	}))
	s.entries[job.Name] = id
	if job.RunOnStart {
		s.warmup = append(s.warmup, job.Name)
	}

	s.logger.Info("job scheduled",
		"job", job.Name,
		"schedule", job.Schedule,
		"timeout", job.Timeout.String(),
		"next_run", schedule.Next(time.Now()).Format(time.RFC3339),
	)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()

	s.mu.Lock()
	warmup := slices.Clone(s.warmup)
	s.mu.Unlock()
	for _, name := range warmup {
		go func() {
			if err := s.trigger(name); err != nil {
				s.logger.Warn("startup run failed", "job", name, "error", err)
			}
		}()
	}
	s.logger.Info("job scheduler started", "jobs", len(s.entries), "startup_runs", len(warmup))
}

// Stop halts new ticks, cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running jobs: %w", ctx.Err())
	}
}

// trigger runs a registered job through the same chain as a cron tick,
// so it is skipped when a run is already active.
func (s *Scheduler) trigger(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownJob, name)
	}

	entry := s.cron.Entry(id)
	if entry.WrappedJob == nil {
		return fmt.Errorf("%w: %s", errUnknownJob, name)
	}
	entry.WrappedJob.Run()
	return nil
}

func (s *Scheduler) execute(job Job) {
	ctx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	started := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(started)
	s.metrics.JobDuration(job.Name, elapsed)

	if err != nil {
		s.logger.ErrorContext(ctx, "job run failed", "job", job.Name, "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	s.logger.InfoContext(ctx, "job run finished", "job", job.Name, "duration_ms", elapsed.Milliseconds())
}

// cronLogger adapts the zap wrapper to cron.Logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if msg == "skip" {
		l.logger.Warn("cron: previous run still active, tick skipped", keysAndValues...)
		return
	}
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
