package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/event"
	"github.com/riskibarqy/live-links/internal/domain/matching"
	"github.com/riskibarqy/live-links/internal/domain/provider"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

const (
	StrategyMatched   = "matched"
	StrategyGenerated = "generated"
)

// CandidateSource hands the assigner the current candidate pool.
type CandidateSource interface {
	CandidatePool(ctx context.Context) ([]candidate.Candidate, error)
}

type AssignConfig struct {
	Leagues     []string
	BatchSize   int
	BatchPause  time.Duration
	WindowLead  time.Duration
	WindowGrace time.Duration
}

type AssignedEvent struct {
	ExternalID string   `json:"externalId"`
	Name       string   `json:"name"`
	League     string   `json:"league"`
	Strategy   string   `json:"strategy"`
	Created    bool     `json:"created"`
	URLs       []string `json:"urls"`
}

type LeagueError struct {
	League  string `json:"league"`
	Message string `json:"message"`
}

type AssignResult struct {
	Success        bool            `json:"success"`
	TotalAssigned  int             `json:"totalAssigned"`
	Created        int             `json:"created"`
	Skipped        int             `json:"skipped"`
	AssignedEvents []AssignedEvent `json:"assignedEvents"`
	LeaguesScanned int             `json:"leaguesScanned"`
	Errors         []LeagueError   `json:"errors,omitempty"`
}

type LinkAssignerService struct {
	schedule   ScheduleProvider
	candidates CandidateSource
	events     event.Repository
	templates  []provider.Template
	cfg        AssignConfig
	metrics    PipelineMetrics
	logger     *logging.Logger
	now        func() time.Time
}

func NewLinkAssignerService(
	schedule ScheduleProvider,
	candidates CandidateSource,
	events event.Repository,
	templates []provider.Template,
	cfg AssignConfig,
	metrics PipelineMetrics,
	logger *logging.Logger,
) *LinkAssignerService {
	if logger == nil {
		logger = logging.Default()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.WindowLead <= 0 {
		cfg.WindowLead = 30 * time.Minute
	}
	if cfg.WindowGrace <= 0 {
		cfg.WindowGrace = 10 * time.Minute
	}

	return &LinkAssignerService{
		schedule:   schedule,
		candidates: candidates,
		events:     events,
		templates:  templates,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

type assignAccumulator struct {
	mu     sync.Mutex
	result AssignResult
	failed int
}

func (a *assignAccumulator) leagueError(league string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Errors = append(a.result.Errors, LeagueError{League: league, Message: err.Error()})
}

func (a *assignAccumulator) leagueFailed(league string, err error) {
	a.mu.Lock()
	a.failed++
	a.mu.Unlock()
	a.leagueError(league, err)
}

func (a *assignAccumulator) assigned(item AssignedEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.TotalAssigned++
	if item.Created {
		a.result.Created++
	}
	a.result.AssignedEvents = append(a.result.AssignedEvents, item)
}

func (a *assignAccumulator) skipped() {
	a.mu.Lock()
	a.result.Skipped++
	a.mu.Unlock()
}

// Assign fills link slots for every scheduled event inside the assignment
// window of the configured leagues.
func (s *LinkAssignerService) Assign(ctx context.Context) (AssignResult, error) {
	return s.AssignLeagues(ctx, s.cfg.Leagues)
}

// AssignLeagues is Assign over an explicit league list.
func (s *LinkAssignerService) AssignLeagues(ctx context.Context, leagues []string) (AssignResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LinkAssignerService.Assign", attribute.Int("assign.leagues", len(leagues)))
	defer span.End()

	if s.schedule == nil || s.events == nil {
		return AssignResult{}, fmt.Errorf("%w: link assigner is missing a collaborator", ErrNotConfigured)
	}

	acc := &assignAccumulator{result: AssignResult{AssignedEvents: []AssignedEvent{}}}

	var candidatePool []candidate.Candidate
	if s.candidates != nil {
		loaded, err := s.candidates.CandidatePool(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "load candidate pool failed, using generated links only", "error", err)
			acc.leagueError("candidates", err)
		} else {
			candidatePool = loaded
		}
	}

	leagues = normalizeLeagues(leagues)
	for start := 0; start < len(leagues); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchPause > 0 {
			timer := time.NewTimer(s.cfg.BatchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return acc.result, ctx.Err()
			case <-timer.C:
			}
		}

		end := start + s.cfg.BatchSize
		if end > len(leagues) {
			end = len(leagues)
		}

		p := pool.New()
		for _, league := range leagues[start:end] {
			p.Go(func() {
				s.assignLeague(ctx, league, candidatePool, acc)
			})
		}
		p.Wait()
		acc.result.LeaguesScanned += end - start
	}

	acc.result.Success = len(leagues) == 0 || acc.failed < len(leagues)
	span.SetAttributes(
		attribute.Int("assign.assigned", acc.result.TotalAssigned),
		attribute.Int("assign.skipped", acc.result.Skipped),
	)
	s.logger.InfoContext(ctx, "link assignment finished",
		"leagues", acc.result.LeaguesScanned,
		"assigned", acc.result.TotalAssigned,
		"created", acc.result.Created,
		"skipped", acc.result.Skipped,
		"errors", len(acc.result.Errors),
	)
	return acc.result, nil
}

func (s *LinkAssignerService) assignLeague(ctx context.Context, league string, candidatePool []candidate.Candidate, acc *assignAccumulator) {
	scheduled, err := s.schedule.ListEvents(ctx, league)
	if err != nil {
		s.logger.WarnContext(ctx, "fetch league schedule failed", "league", league, "error", err)
		acc.leagueFailed(league, err)
		return
	}

	now := s.now().UTC()
	for _, item := range scheduled {
		if !item.InAssignmentWindow(now, s.cfg.WindowLead, s.cfg.WindowGrace) {
			continue
		}

		urls, strategy := s.buildLinks(item, candidatePool)
		if len(urls) == 0 {
			continue
		}

		existing, found, err := s.events.GetByExternalID(ctx, item.ExternalID)
		if err != nil {
			acc.leagueError(league, fmt.Errorf("load event %s: %w", item.ExternalID, err))
			continue
		}
		keepPromoted := false
		if found {
			if !existing.OwnedByPipeline() {
				acc.skipped()
				continue
			}
			item.ID = existing.ID
			keepPromoted = existing.PromotedFrom(urls)
		}

		if keepPromoted {
			// The health checker already demoted the leading links of this
			// list; only the schedule metadata is refreshed.
			item.Slots, item.PendingSlots = existing.Slots, existing.PendingSlots
		} else {
			item.AssignSlots(urls)
		}
		created, applied, err := s.events.UpsertLinks(ctx, item)
		if err != nil {
			s.logger.WarnContext(ctx, "upsert event links failed", "external_id", item.ExternalID, "error", err)
			acc.leagueError(league, fmt.Errorf("upsert event %s: %w", item.ExternalID, err))
			continue
		}
		if !applied || keepPromoted {
			acc.skipped()
			continue
		}

		s.metrics.AssignedEvent(strategy)
		acc.assigned(AssignedEvent{
			ExternalID: item.ExternalID,
			Name:       item.Name,
			League:     league,
			Strategy:   strategy,
			Created:    created,
			URLs:       urls,
		})
	}
}

// buildLinks prefers a matched candidate and falls back to the generated
// "ppv-<away>-vs-<home>" slug across the provider templates.
func (s *LinkAssignerService) buildLinks(item event.Event, candidatePool []candidate.Candidate) ([]string, string) {
	if match, ok := matching.Resolve(item, candidatePool); ok {
		urls := []string{match.URL}
		providerName := match.Provider
		if t, found := provider.ForURL(s.templates, match.URL); found {
			providerName = t.Name
		}
		for _, u := range provider.BuildAll(provider.Siblings(s.templates, providerName), match.Slug, event.SlotCount-1) {
			if u != match.URL {
				urls = append(urls, u)
			}
		}
		return urls, StrategyMatched
	}

	slug := provider.PPVSlug(item.AwayTeam, item.HomeTeam)
	return provider.BuildAll(s.templates, slug, event.SlotCount), StrategyGenerated
}

func normalizeLeagues(leagues []string) []string {
	out := make([]string, 0, len(leagues))
	seen := make(map[string]struct{}, len(leagues))
	for _, league := range leagues {
		league = strings.ToLower(strings.Trim(strings.TrimSpace(league), "/"))
		if league == "" {
			continue
		}
		if _, ok := seen[league]; ok {
			continue
		}
		seen[league] = struct{}{}
		out = append(out, league)
	}
	return out
}
