package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/live-links/internal/domain/event"
	"github.com/riskibarqy/live-links/internal/platform/logging"
)

type HealthConfig struct {
	Concurrency int
	StaleAfter  time.Duration
}

type HealthResult struct {
	Success        bool     `json:"success"`
	Tested         int      `json:"tested"`
	Removed        int      `json:"removed"`
	Cleaned        int      `json:"cleaned"`
	ExpiredRemoved int      `json:"expiredRemoved"`
	Working        int      `json:"working"`
	Errors         []string `json:"errors,omitempty"`
}

// LinkHealthService probes persisted links, promotes working fallbacks and
// prunes events whose links are gone.
type LinkHealthService struct {
	events  event.Repository
	prober  LinkProber
	cfg     HealthConfig
	metrics PipelineMetrics
	logger  *logging.Logger
	now     func() time.Time
}

func NewLinkHealthService(
	events event.Repository,
	prober LinkProber,
	cfg HealthConfig,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *LinkHealthService {
	if logger == nil {
		logger = logging.Default()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 6 * time.Hour
	}

	return &LinkHealthService{
		events:  events,
		prober:  prober,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

type healthCounters struct {
	tested         atomic.Int32
	removed        atomic.Int32
	cleaned        atomic.Int32
	expiredRemoved atomic.Int32
	working        atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (c *healthCounters) fail(format string, args ...any) {
	c.mu.Lock()
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
	c.mu.Unlock()
}

// Check runs one health cycle over every active event that has links.
func (s *LinkHealthService) Check(ctx context.Context) (HealthResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LinkHealthService.Check")
	defer span.End()

	if s.events == nil || s.prober == nil {
		return HealthResult{}, fmt.Errorf("%w: link health checker is missing a collaborator", ErrNotConfigured)
	}

	items, err := s.events.ListActiveWithLinks(ctx)
	if err != nil {
		return HealthResult{}, failSpan(span, fmt.Errorf("list active events: %w", err))
	}

	workers := s.cfg.Concurrency
	if workers > len(items) {
		workers = len(items)
	}
	if workers < 1 {
		workers = 1
	}
	workerPool, err := ants.NewPool(workers)
	if err != nil {
		return HealthResult{}, fmt.Errorf("create health worker pool: %w", err)
	}
	defer workerPool.Release()

	now := s.now().UTC()
	counters := &healthCounters{}
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		submitErr := workerPool.Submit(func() {
			defer wg.Done()
			s.checkEvent(ctx, item, now, counters)
		})
		if submitErr != nil {
			wg.Done()
			counters.fail("event %s: submit health task: %v", item.ExternalID, submitErr)
		}
	}
	wg.Wait()

	result := HealthResult{
		Success:        true,
		Tested:         int(counters.tested.Load()),
		Removed:        int(counters.removed.Load()),
		Cleaned:        int(counters.cleaned.Load()),
		ExpiredRemoved: int(counters.expiredRemoved.Load()),
		Working:        int(counters.working.Load()),
		Errors:         counters.errors,
	}
	s.logger.InfoContext(ctx, "link health check finished",
		"tested", result.Tested,
		"removed", result.Removed,
		"cleaned", result.Cleaned,
		"expired_removed", result.ExpiredRemoved,
		"working", result.Working,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *LinkHealthService) checkEvent(ctx context.Context, item event.Event, now time.Time, counters *healthCounters) {
	if event.IsPastStale(item, now, s.cfg.StaleAfter) {
		if err := s.events.Delete(ctx, item.ID); err != nil {
			counters.fail("event %s: delete stale: %v", item.ExternalID, err)
			return
		}
		counters.removed.Add(1)
		return
	}

	slots := item.AvailableSlots()
	if len(slots) == 0 {
		return
	}
	counters.tested.Add(1)

	passing := -1
	allExpired := true
	for _, idx := range slots {
		if ctx.Err() != nil {
			return
		}
		res := s.prober.Probe(ctx, item.Slots[idx])
		s.metrics.HealthVerdict(string(res.Verdict))
		if res.Verdict == ProbeOK {
			passing = idx
			break
		}
		if res.Verdict != ProbeExpired {
			allExpired = false
		}
	}

	switch {
	case passing == 0:
		counters.working.Add(1)
	case passing > 0:
		item.Promote(passing)
		if err := s.events.UpdateSlots(ctx, item); err != nil {
			counters.fail("event %s: promote slot %d: %v", item.ExternalID, passing+1, err)
			return
		}
		s.logger.InfoContext(ctx, "promoted fallback link", "external_id", item.ExternalID, "slot", passing+1)
		counters.cleaned.Add(1)
		counters.working.Add(1)
	case allExpired:
		if err := s.events.Delete(ctx, item.ID); err != nil {
			counters.fail("event %s: delete expired: %v", item.ExternalID, err)
			return
		}
		s.logger.InfoContext(ctx, "removed event with expired links", "external_id", item.ExternalID)
		counters.expiredRemoved.Add(1)
		counters.removed.Add(1)
	}
}
