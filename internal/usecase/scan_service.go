package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/matching"
	"github.com/riskibarqy/live-links/internal/platform/cache"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/riskibarqy/live-links/internal/platform/resilience"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

const candidatePoolKey = "candidates"

type ScanConfig struct {
	BatchTimeout time.Duration
	Concurrency  int
	CacheTTL     time.Duration
}

type ScanResult struct {
	Success    bool                    `json:"success"`
	Count      int                     `json:"count"`
	Generation int64                   `json:"generation"`
	Matches    []candidate.Candidate   `json:"matches"`
	Errors     []candidate.SourceError `json:"errors,omitempty"`
}

// ScanService runs every source adapter, normalizes their output into one
// candidate pool and persists the snapshot of the scan.
type ScanService struct {
	adapters  []SourceAdapter
	snapshots candidate.SnapshotRepository
	pool      *cache.Store[[]candidate.Candidate]
	metrics   PipelineMetrics
	logger    *logging.Logger
	cfg       ScanConfig
	now       func() time.Time
	flight    resilience.SingleFlight[ScanResult]

	genMu   sync.Mutex
	lastGen int64
}

func NewScanService(
	adapters []SourceAdapter,
	snapshots candidate.SnapshotRepository,
	cfg ScanConfig,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *ScanService {
	if logger == nil {
		logger = logging.Default()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 6
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	return &ScanService{
		adapters:  adapters,
		snapshots: snapshots,
		pool:      cache.NewStore[[]candidate.Candidate](cfg.CacheTTL),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Scan runs a fresh scan. Concurrent callers share one run.
func (s *ScanService) Scan(ctx context.Context) (ScanResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScanService.Scan", attribute.Int("scan.sources", len(s.adapters)))
	defer span.End()

	result, err, shared := s.flight.DoContext(ctx, "scan", func() (ScanResult, error) {
		return s.run(ctx)
	})
	if shared {
		s.logger.DebugContext(ctx, "scan joined an in-flight run")
	}
	if err != nil {
		return ScanResult{}, failSpan(span, err)
	}
	span.SetAttributes(
		attribute.Int64("scan.generation", result.Generation),
		attribute.Int("scan.candidates", result.Count),
		attribute.Int("scan.source_errors", len(result.Errors)),
	)
	return result, nil
}

// CandidatePool returns the cached pool of the last scan, scanning when the
// cache is cold.
func (s *ScanService) CandidatePool(ctx context.Context) ([]candidate.Candidate, error) {
	return s.pool.GetOrLoad(ctx, candidatePoolKey, func(ctx context.Context) ([]candidate.Candidate, error) {
		result, err := s.Scan(ctx)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, fmt.Errorf("%w: every listing source failed", ErrDependencyUnavailable)
		}
		return result.Matches, nil
	})
}

// ListSnapshot returns the persisted snapshot of the latest scan.
func (s *ScanService) ListSnapshot(ctx context.Context) ([]candidate.Link, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScanService.ListSnapshot")
	defer span.End()

	if s.snapshots == nil {
		return nil, fmt.Errorf("%w: snapshot store is missing", ErrNotConfigured)
	}
	links, err := s.snapshots.ListCurrent(ctx)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("list scraped links: %w", err))
	}
	return links, nil
}

type adapterOutcome struct {
	items []candidate.Candidate
	err   error
}

func (s *ScanService) run(ctx context.Context) (ScanResult, error) {
	if len(s.adapters) == 0 {
		return ScanResult{Success: true, Matches: []candidate.Candidate{}}, nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	outcomes := make([]adapterOutcome, len(s.adapters))
	p := pool.New().WithMaxGoroutines(s.cfg.Concurrency)
	for i, adapter := range s.adapters {
		p.Go(func() {
			items, err := adapter.Fetch(batchCtx)
			if err == nil && batchCtx.Err() != nil && len(items) == 0 {
				err = batchCtx.Err()
			}
			outcomes[i] = adapterOutcome{items: items, err: err}
		})
	}
	p.Wait()

	merged := make([]candidate.Candidate, 0, 64)
	sourceErrors := make([]candidate.SourceError, 0)
	failed := 0
	for i, outcome := range outcomes {
		name := s.adapters[i].Name()
		if outcome.err != nil {
			failed++
			s.metrics.ScanSourceError(name)
			s.logger.WarnContext(ctx, "source scan failed", "source", name, "error", outcome.err)
			sourceErrors = append(sourceErrors, candidate.SourceError{Source: name, Message: describeSourceError(outcome.err)})
			continue
		}
		s.metrics.ScanCandidates(name, len(outcome.items))
		merged = append(merged, outcome.items...)
	}
	merged = candidate.Dedupe(merged)

	result := ScanResult{
		Success:    failed < len(s.adapters),
		Count:      len(merged),
		Generation: s.nextGeneration(),
		Matches:    merged,
		Errors:     sourceErrors,
	}

	if failed == len(s.adapters) {
		// Keep the previous snapshot and pool rather than publishing an empty generation.
		s.logger.WarnContext(ctx, "every source failed, keeping previous snapshot",
			"sources", len(s.adapters),
			"generation", result.Generation,
		)
		return result, nil
	}

	if s.snapshots != nil {
		if err := s.snapshots.ReplaceGeneration(ctx, result.Generation, BuildSnapshot(merged, result.Generation)); err != nil {
			s.logger.ErrorContext(ctx, "persist scan snapshot failed", "generation", result.Generation, "error", err)
			result.Errors = append(result.Errors, candidate.SourceError{Source: "snapshot", Message: err.Error()})
		}
	}

	s.pool.Set(ctx, candidatePoolKey, merged)
	s.logger.InfoContext(ctx, "scan finished",
		"sources", len(s.adapters),
		"failed_sources", failed,
		"candidates", len(merged),
		"generation", result.Generation,
	)
	return result, nil
}

// nextGeneration is strictly increasing even when two scans land in the
// same millisecond.
func (s *ScanService) nextGeneration() int64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	gen := s.now().UnixMilli()
	if gen <= s.lastGen {
		gen = s.lastGen + 1
	}
	s.lastGen = gen
	return gen
}

// BuildSnapshot groups candidates that name the same match and keeps up to
// candidate.MaxProviderURLs provider URLs per group.
func BuildSnapshot(items []candidate.Candidate, generation int64) []candidate.Link {
	byKey := make(map[string]int, len(items))
	out := make([]candidate.Link, 0, len(items))
	for _, item := range items {
		key := matching.NormalizedTeamKey(item.Name())
		if key == "" {
			key = item.MatchID()
		}

		idx, ok := byKey[key]
		if !ok {
			out = append(out, candidate.Link{
				MatchID:        item.MatchID(),
				Title:          item.Name(),
				Category:       item.Category,
				HomeTeam:       item.HomeTeam,
				AwayTeam:       item.AwayTeam,
				Source:         item.Source,
				ProviderURLs:   make(map[string]string, candidate.MaxProviderURLs),
				ScanGeneration: generation,
				ScannedAt:      item.ScannedAt,
			})
			idx = len(out) - 1
			byKey[key] = idx
		}

		link := &out[idx]
		providerName := item.Provider
		if providerName == "" {
			providerName = item.Source
		}
		if _, taken := link.ProviderURLs[providerName]; taken || len(link.ProviderURLs) >= candidate.MaxProviderURLs {
			continue
		}
		link.ProviderURLs[providerName] = item.URL
	}
	return out
}

func describeSourceError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "source timed out"
	}
	return err.Error()
}
