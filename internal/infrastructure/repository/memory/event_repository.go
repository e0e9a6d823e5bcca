package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/live-links/internal/domain/event"
)

// EventRepository keeps events keyed by external id and applies the same
// ownership guard as the SQL upsert.
type EventRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byExtID map[string]event.Event
	now     func() time.Time
}

func NewEventRepository(seed []event.Event) *EventRepository {
	r := &EventRepository{byExtID: make(map[string]event.Event, len(seed)), now: time.Now}
	for _, item := range seed {
		r.nextID++
		if item.ID == 0 {
			item.ID = r.nextID
		} else if item.ID > r.nextID {
			r.nextID = item.ID
		}
		r.byExtID[item.ExternalID] = item
	}
	return r
}

func (r *EventRepository) GetByExternalID(_ context.Context, externalID string) (event.Event, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.byExtID[strings.TrimSpace(externalID)]
	return item, ok, nil
}

func (r *EventRepository) UpsertLinks(_ context.Context, item event.Event) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byExtID[item.ExternalID]
	if !ok {
		r.nextID++
		item.ID = r.nextID
		item.IsActive = true
		item.UpdatedAt = r.now().UTC()
		r.byExtID[item.ExternalID] = item
		return true, true, nil
	}
	if !existing.OwnedByPipeline() {
		return false, false, nil
	}

	existing.Name = item.Name
	existing.KickoffAt = item.KickoffAt
	existing.Sport = item.Sport
	existing.League = item.League
	existing.HomeTeam = item.HomeTeam
	existing.AwayTeam = item.AwayTeam
	existing.Thumbnail = item.Thumbnail
	existing.Status = item.Status
	existing.IsLive = item.IsLive
	existing.IsActive = true
	existing.Slots = item.Slots
	existing.PendingSlots = item.PendingSlots
	existing.UpdatedAt = r.now().UTC()
	r.byExtID[item.ExternalID] = existing
	return false, true, nil
}

func (r *EventRepository) ListActiveWithLinks(_ context.Context) ([]event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]event.Event, 0, len(r.byExtID))
	for _, item := range r.byExtID {
		if item.IsActive && item.HasLinks() {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *EventRepository) UpdateSlots(_ context.Context, item event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, existing := range r.byExtID {
		if existing.ID != item.ID {
			continue
		}
		existing.Slots = item.Slots
		existing.PendingSlots = item.PendingSlots
		existing.UpdatedAt = r.now().UTC()
		r.byExtID[key] = existing
		return nil
	}
	return fmt.Errorf("update event slots id=%d: %w", item.ID, sql.ErrNoRows)
}

// Delete is a no-op for an unknown id, like the SQL delete.
func (r *EventRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, existing := range r.byExtID {
		if existing.ID == id {
			delete(r.byExtID, key)
			return nil
		}
	}
	return nil
}
