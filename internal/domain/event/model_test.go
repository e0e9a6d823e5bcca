package event

import (
	"testing"
	"time"
)

func TestEvent_InAssignmentWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	lead := 30 * time.Minute
	grace := 10 * time.Minute

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{name: "live regardless of kickoff", event: Event{IsLive: true, KickoffAt: now.Add(-3 * time.Hour)}, want: true},
		{name: "starts in 20 minutes", event: Event{KickoffAt: now.Add(20 * time.Minute)}, want: true},
		{name: "starts exactly at lead", event: Event{KickoffAt: now.Add(lead)}, want: true},
		{name: "starts in 45 minutes", event: Event{KickoffAt: now.Add(45 * time.Minute)}, want: false},
		{name: "started 5 minutes ago", event: Event{KickoffAt: now.Add(-5 * time.Minute)}, want: true},
		{name: "started 15 minutes ago and not live", event: Event{KickoffAt: now.Add(-15 * time.Minute)}, want: false},
		{name: "finished", event: Event{Status: StatusFinished, KickoffAt: now}, want: false},
		{name: "no kickoff", event: Event{}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.event.InAssignmentWindow(now, lead, grace); got != tc.want {
				t.Fatalf("InAssignmentWindow() = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestEvent_PromoteSecondSlot(t *testing.T) {
	e := Event{}
	e.AssignSlots([]string{"https://a/1", "https://b/2"})

	if !e.Promote(1) {
		t.Fatalf("expected promotion")
	}
	if e.Slots[0] != "https://b/2" {
		t.Fatalf("expected former slot 2 in slot 1, got %q", e.Slots[0])
	}
	if e.Slots[1] != "" || e.Slots[2] != "" {
		t.Fatalf("expected vacated slots cleared, got %v", e.Slots)
	}
	if !e.OwnedByPipeline() {
		t.Fatalf("mirrors must move with slots")
	}
}

func TestEvent_PromoteShiftsRemainingSlots(t *testing.T) {
	e := Event{}
	e.AssignSlots([]string{"https://a/1", "https://b/2", "https://c/3"})

	e.Promote(1)
	want := [SlotCount]string{"https://b/2", "https://c/3", ""}
	if e.Slots != want {
		t.Fatalf("unexpected slots after promotion: %v", e.Slots)
	}

	e2 := Event{}
	e2.AssignSlots([]string{"https://a/1", "https://b/2", "https://c/3"})
	e2.Promote(2)
	if e2.Slots != [SlotCount]string{"https://c/3", "", ""} {
		t.Fatalf("unexpected slots after promoting slot 3: %v", e2.Slots)
	}
}

func TestEvent_PromoteRejectsInvalidSlot(t *testing.T) {
	e := Event{}
	e.AssignSlots([]string{"https://a/1"})
	if e.Promote(0) || e.Promote(1) || e.Promote(5) {
		t.Fatalf("expected invalid promotions to be rejected")
	}
}

func TestEvent_PromotedFrom(t *testing.T) {
	urls := []string{"https://a/1", "https://b/2", "https://c/3"}

	fresh := Event{}
	fresh.AssignSlots(urls)
	if fresh.PromotedFrom(urls) {
		t.Fatalf("untouched slots are not a promotion")
	}

	once := fresh
	once.Promote(1)
	if !once.PromotedFrom(urls) {
		t.Fatalf("expected slot 2 promotion to be recognised: %v", once.Slots)
	}

	twice := fresh
	twice.Promote(2)
	if !twice.PromotedFrom(urls) {
		t.Fatalf("expected slot 3 promotion to be recognised: %v", twice.Slots)
	}

	other := Event{}
	other.AssignSlots([]string{"https://b/2", "https://z/9"})
	if other.PromotedFrom(urls) {
		t.Fatalf("different tail must not count as a promotion")
	}
	if (Event{}).PromotedFrom(urls) {
		t.Fatalf("empty event must not count as a promotion")
	}
}

func TestEvent_OwnedByPipeline(t *testing.T) {
	e := Event{}
	if !e.OwnedByPipeline() {
		t.Fatalf("empty event must be pipeline-owned")
	}

	e.AssignSlots([]string{"https://embed.example/admin/ppv-a-vs-b"})
	if !e.OwnedByPipeline() {
		t.Fatalf("freshly assigned event must be pipeline-owned")
	}

	e.Slots[1] = "https://operator.example/manual"
	if e.OwnedByPipeline() {
		t.Fatalf("operator-edited slot must protect the event")
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"STATUS_IN_PROGRESS": StatusLive,
		"in":                 StatusLive,
		"STATUS_FINAL":       StatusFinished,
		"post":               StatusFinished,
		"pre":                StatusUpcoming,
		"":                   StatusUpcoming,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsPastStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	if !IsPastStale(Event{KickoffAt: now.Add(-7 * time.Hour)}, now, 6*time.Hour) {
		t.Fatalf("expected old event to be stale")
	}
	if IsPastStale(Event{KickoffAt: now.Add(-7 * time.Hour), IsLive: true}, now, 6*time.Hour) {
		t.Fatalf("live event must never be stale")
	}
}
