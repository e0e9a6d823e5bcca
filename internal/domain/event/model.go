package event

import (
	"slices"
	"strings"
	"time"
)

const (
	StatusUpcoming = "upcoming"
	StatusLive     = "live"
	StatusFinished = "finished"
)

// SlotCount is the number of ranked playback URLs kept per event.
const SlotCount = 3

// Event is a canonical scheduled match, keyed by the schedule feed's external id.
type Event struct {
	ID         int64
	ExternalID string
	Name       string
	KickoffAt  time.Time
	Sport      string
	League     string
	HomeTeam   string
	AwayTeam   string
	Thumbnail  string
	Status     string
	IsLive     bool
	IsActive   bool

	// Slots[0] is the primary link, Slots[1..2] are fallbacks.
	Slots [SlotCount]string
	// PendingSlots mirror what the pipeline last wrote. A slot that differs
	// from its mirror was edited by an operator.
	PendingSlots [SlotCount]string

	UpdatedAt time.Time
}

func NormalizeStatus(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "live", "in", "in_progress", "inprogress", "halftime", "status_in_progress", "status_halftime":
		return StatusLive
	case "finished", "post", "final", "ft", "status_final", "status_full_time", "completed":
		return StatusFinished
	default:
		return StatusUpcoming
	}
}

// InAssignmentWindow reports whether links should be assigned now: the event
// is live, or kickoff is within lead from now and no more than grace ago.
func (e Event) InAssignmentWindow(now time.Time, lead, grace time.Duration) bool {
	if e.Status == StatusFinished {
		return false
	}
	if e.IsLive || e.Status == StatusLive {
		return true
	}
	if e.KickoffAt.IsZero() {
		return false
	}
	return !now.Before(e.KickoffAt.Add(-lead)) && !now.After(e.KickoffAt.Add(grace))
}

func (e Event) HasLinks() bool {
	for _, slot := range e.Slots {
		if strings.TrimSpace(slot) != "" {
			return true
		}
	}
	return false
}

// AvailableSlots returns the indexes of non-empty slots in rank order.
func (e Event) AvailableSlots() []int {
	out := make([]int, 0, SlotCount)
	for i, slot := range e.Slots {
		if strings.TrimSpace(slot) != "" {
			out = append(out, i)
		}
	}
	return out
}

// OwnedByPipeline is false once an operator has replaced any slot the
// pipeline wrote.
func (e Event) OwnedByPipeline() bool {
	for i := range e.Slots {
		slot := strings.TrimSpace(e.Slots[i])
		if slot == "" {
			continue
		}
		if slot != strings.TrimSpace(e.PendingSlots[i]) {
			return false
		}
	}
	return true
}

// AssignSlots replaces every slot and its mirror with urls.
func (e *Event) AssignSlots(urls []string) {
	for i := 0; i < SlotCount; i++ {
		value := ""
		if i < len(urls) {
			value = strings.TrimSpace(urls[i])
		}
		e.Slots[i] = value
		e.PendingSlots[i] = value
	}
}

// Promote moves slot passing to the primary position and shifts every later
// slot up behind it. Slots ranked before passing are dropped and the vacated
// tail is cleared, so no URL ends up duplicated. Mirrors move in lockstep.
func (e *Event) Promote(passing int) bool {
	if passing <= 0 || passing >= SlotCount || strings.TrimSpace(e.Slots[passing]) == "" {
		return false
	}

	var slots, pending [SlotCount]string
	n := 0
	for i := passing; i < SlotCount; i++ {
		if strings.TrimSpace(e.Slots[i]) == "" {
			continue
		}
		slots[n] = e.Slots[i]
		pending[n] = e.PendingSlots[i]
		n++
	}
	e.Slots = slots
	e.PendingSlots = pending
	return true
}

// PromotedFrom reports whether the slots are what Promote leaves of urls
// once at least one leading URL was dropped by the health checker.
func (e Event) PromotedFrom(urls []string) bool {
	current := make([]string, 0, SlotCount)
	for _, i := range e.AvailableSlots() {
		current = append(current, strings.TrimSpace(e.Slots[i]))
	}
	if len(current) == 0 {
		return false
	}

	for drop := 1; drop < len(urls) && drop < SlotCount; drop++ {
		rest := make([]string, 0, SlotCount)
		for _, u := range urls[drop:min(len(urls), SlotCount)] {
			if u = strings.TrimSpace(u); u != "" {
				rest = append(rest, u)
			}
		}
		if slices.Equal(rest, current) {
			return true
		}
	}
	return false
}

func IsPastStale(e Event, now time.Time, staleAfter time.Duration) bool {
	if e.IsLive || e.Status == StatusLive || e.KickoffAt.IsZero() || staleAfter <= 0 {
		return false
	}
	return now.Sub(e.KickoffAt) > staleAfter
}
