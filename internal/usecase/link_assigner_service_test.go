package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/event"
	"github.com/riskibarqy/live-links/internal/domain/provider"
	"github.com/riskibarqy/live-links/internal/infrastructure/repository/memory"
	eventmock "github.com/riskibarqy/live-links/internal/mocks/domain/event"
	"github.com/riskibarqy/live-links/internal/platform/logging"
	"github.com/stretchr/testify/mock"
)

var assignNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

type fakeSchedule struct {
	mu       sync.Mutex
	byLeague map[string][]event.Event
	errs     map[string]error
	calls    []string
}

func (f *fakeSchedule) ListEvents(_ context.Context, league string) ([]event.Event, error) {
	f.mu.Lock()
	f.calls = append(f.calls, league)
	f.mu.Unlock()
	if err := f.errs[league]; err != nil {
		return nil, err
	}
	return f.byLeague[league], nil
}

type staticCandidates []candidate.Candidate

func (s staticCandidates) CandidatePool(context.Context) ([]candidate.Candidate, error) {
	return s, nil
}

func testTemplates() []provider.Template {
	return []provider.Template{
		{Name: "alpha", URL: "https://alpha.example/embed/{slug}"},
		{Name: "beta", URL: "https://beta.example/e/{slug}"},
		{Name: "gamma", URL: "https://gamma.example/v/{slug}"},
	}
}

func lakersCeltics() event.Event {
	return event.Event{
		ExternalID: "401585001",
		Name:       "Los Angeles Lakers at Boston Celtics",
		KickoffAt:  assignNow.Add(10 * time.Minute),
		League:     "nba",
		HomeTeam:   "Boston Celtics",
		AwayTeam:   "Los Angeles Lakers",
		Status:     event.StatusUpcoming,
	}
}

func newAssigner(schedule ScheduleProvider, pool CandidateSource, repo event.Repository, leagues ...string) *LinkAssignerService {
	svc := NewLinkAssignerService(schedule, pool, repo, testTemplates(), AssignConfig{
		Leagues:    leagues,
		BatchSize:  5,
		BatchPause: time.Millisecond,
	}, nil, logging.NewNop())
	svc.now = func() time.Time { return assignNow }
	return svc
}

func TestLinkAssigner_MatchedCandidateFillsSiblingSlots(t *testing.T) {
	t.Parallel()

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}
	pool := staticCandidates{{
		Title:    "Lakers Vs Celtics Live",
		Provider: "beta",
		Slug:     "ppv-lakers-vs-celtics",
		URL:      "https://beta.example/e/ppv-lakers-vs-celtics",
	}}
	repo := memory.NewEventRepository(nil)

	result, err := newAssigner(schedule, pool, repo, "basketball/nba").Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.TotalAssigned != 1 || result.Created != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AssignedEvents[0].Strategy != StrategyMatched {
		t.Fatalf("expected matched strategy, got=%s", result.AssignedEvents[0].Strategy)
	}

	stored, found, _ := repo.GetByExternalID(context.Background(), "401585001")
	if !found {
		t.Fatalf("expected stored event")
	}
	want := [event.SlotCount]string{
		"https://beta.example/e/ppv-lakers-vs-celtics",
		"https://alpha.example/embed/ppv-lakers-vs-celtics",
		"https://gamma.example/v/ppv-lakers-vs-celtics",
	}
	if stored.Slots != want {
		t.Fatalf("unexpected slots: %v", stored.Slots)
	}
}

func TestLinkAssigner_GeneratesSlugWithoutCandidate(t *testing.T) {
	t.Parallel()

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}
	repo := memory.NewEventRepository(nil)

	result, err := newAssigner(schedule, staticCandidates{}, repo, "basketball/nba").Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.TotalAssigned != 1 || result.AssignedEvents[0].Strategy != StrategyGenerated {
		t.Fatalf("unexpected result: %+v", result)
	}

	stored, _, _ := repo.GetByExternalID(context.Background(), "401585001")
	if stored.Slots[0] != "https://alpha.example/embed/ppv-los-angeles-lakers-vs-boston-celtics" {
		t.Fatalf("unexpected slot 1: %s", stored.Slots[0])
	}
	if stored.Slots[2] != "https://gamma.example/v/ppv-los-angeles-lakers-vs-boston-celtics" {
		t.Fatalf("unexpected slot 3: %s", stored.Slots[2])
	}
}

func TestLinkAssigner_IsIdempotent(t *testing.T) {
	t.Parallel()

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}
	repo := memory.NewEventRepository(nil)
	svc := newAssigner(schedule, staticCandidates{}, repo, "basketball/nba")

	first, err := svc.Assign(context.Background())
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	before, _, _ := repo.GetByExternalID(context.Background(), "401585001")

	second, err := svc.Assign(context.Background())
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}
	after, _, _ := repo.GetByExternalID(context.Background(), "401585001")

	if first.Created != 1 || second.Created != 0 {
		t.Fatalf("expected one insert then update, got first=%d second=%d", first.Created, second.Created)
	}
	if before.ID != after.ID || before.Slots != after.Slots {
		t.Fatalf("second run must leave the same row: before=%+v after=%+v", before, after)
	}
	items, _ := repo.ListActiveWithLinks(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected a single row, got=%d", len(items))
	}
}

func TestLinkAssigner_KeepsPromotedSlots(t *testing.T) {
	t.Parallel()

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}
	repo := memory.NewEventRepository(nil)
	svc := newAssigner(schedule, staticCandidates{}, repo, "basketball/nba")

	if _, err := svc.Assign(context.Background()); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	stored, _, _ := repo.GetByExternalID(context.Background(), "401585001")
	if !stored.Promote(1) {
		t.Fatalf("expected promotion of slot 2")
	}
	if err := repo.UpdateSlots(context.Background(), stored); err != nil {
		t.Fatalf("update slots: %v", err)
	}

	result, err := svc.Assign(context.Background())
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}
	if result.TotalAssigned != 0 || result.Skipped != 1 {
		t.Fatalf("expected promoted event to be left alone: %+v", result)
	}
	after, _, _ := repo.GetByExternalID(context.Background(), "401585001")
	if after.Slots != stored.Slots {
		t.Fatalf("demoted slot was restored: before=%v after=%v", stored.Slots, after.Slots)
	}
	if after.Slots[0] != "https://beta.example/e/ppv-los-angeles-lakers-vs-boston-celtics" {
		t.Fatalf("unexpected primary slot: %s", after.Slots[0])
	}
}

func TestLinkAssigner_SkipsOperatorEditedEvent(t *testing.T) {
	t.Parallel()

	edited := lakersCeltics()
	edited.AssignSlots([]string{"https://alpha.example/embed/old"})
	edited.Slots[0] = "https://operator.example/manual"
	repo := memory.NewEventRepository([]event.Event{edited})
	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}

	result, err := newAssigner(schedule, staticCandidates{}, repo, "basketball/nba").Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.TotalAssigned != 0 || result.Skipped != 1 {
		t.Fatalf("expected operator event to be skipped: %+v", result)
	}
	stored, _, _ := repo.GetByExternalID(context.Background(), "401585001")
	if stored.Slots[0] != "https://operator.example/manual" {
		t.Fatalf("operator slot was overwritten: %s", stored.Slots[0])
	}
}

func TestLinkAssigner_IgnoresEventsOutsideWindow(t *testing.T) {
	t.Parallel()

	later := lakersCeltics()
	later.ExternalID = "later"
	later.KickoffAt = assignNow.Add(2 * time.Hour)
	finished := lakersCeltics()
	finished.ExternalID = "finished"
	finished.Status = event.StatusFinished

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {later, finished}}}
	repo := memory.NewEventRepository(nil)

	result, err := newAssigner(schedule, staticCandidates{}, repo, "basketball/nba").Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.TotalAssigned != 0 {
		t.Fatalf("expected nothing assigned, got=%d", result.TotalAssigned)
	}
}

func TestLinkAssigner_PartialLeagueFailure(t *testing.T) {
	t.Parallel()

	leagues := []string{"a/1", "a/2", "a/3", "a/4", "a/5", "a/6"}
	byLeague := make(map[string][]event.Event, len(leagues))
	for _, league := range leagues {
		item := lakersCeltics()
		item.ExternalID = league
		byLeague[league] = []event.Event{item}
	}
	schedule := &fakeSchedule{
		byLeague: byLeague,
		errs: map[string]error{
			"a/2": errors.New("schedule status=503"),
			"a/6": context.DeadlineExceeded,
		},
	}
	repo := memory.NewEventRepository(nil)

	result, err := newAssigner(schedule, staticCandidates{}, repo, leagues...).Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success with partial failures")
	}
	if result.LeaguesScanned != 6 {
		t.Fatalf("expected 6 leagues scanned, got=%d", result.LeaguesScanned)
	}
	if result.TotalAssigned != 4 {
		t.Fatalf("expected 4 assigned events, got=%d", result.TotalAssigned)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 league errors, got=%+v", result.Errors)
	}
	if len(schedule.calls) != 6 {
		t.Fatalf("every league must be fetched, got=%d", len(schedule.calls))
	}
}

func TestLinkAssigner_AllLeaguesFailing(t *testing.T) {
	t.Parallel()

	schedule := &fakeSchedule{errs: map[string]error{"a/1": errors.New("down"), "a/2": errors.New("down")}}
	result, err := newAssigner(schedule, staticCandidates{}, memory.NewEventRepository(nil), "a/1", "a/2").Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure when every league fails")
	}
}

func TestLinkAssigner_WriteFailureIsCollected(t *testing.T) {
	t.Parallel()

	repo := eventmock.NewRepository(t)
	repo.On("GetByExternalID", mock.Anything, "401585001").Return(event.Event{}, false, nil).Once()
	repo.On("UpsertLinks", mock.Anything, mock.MatchedBy(func(item event.Event) bool {
		return item.ExternalID == "401585001" && item.OwnedByPipeline()
	})).Return(false, false, errors.New("duplicate key")).Once()

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}
	result, err := newAssigner(schedule, staticCandidates{}, repo, "basketball/nba").Assign(context.Background())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !result.Success || result.TotalAssigned != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].League != "basketball/nba" {
		t.Fatalf("expected the write failure to be collected, got %+v", result.Errors)
	}
}

func TestLinkAssigner_MissingRepositoryIsNotConfigured(t *testing.T) {
	t.Parallel()

	schedule := &fakeSchedule{byLeague: map[string][]event.Event{"basketball/nba": {lakersCeltics()}}}
	_, err := newAssigner(schedule, staticCandidates{}, nil, "basketball/nba").Assign(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if len(schedule.calls) != 0 {
		t.Fatalf("schedule must not be queried without a repository: %v", schedule.calls)
	}
}
