package event

import "context"

// Repository is the durable event store shared by the assigner and the
// health checker. All writers go through conflict-key upserts or guarded
// updates.
type Repository interface {
	GetByExternalID(ctx context.Context, externalID string) (Event, bool, error)
	// UpsertLinks inserts or updates by external id. Slots are only
	// overwritten while the stored row is still pipeline-owned; created
	// reports whether a new row was inserted, applied whether any row changed.
	UpsertLinks(ctx context.Context, item Event) (created bool, applied bool, err error)
	ListActiveWithLinks(ctx context.Context) ([]Event, error)
	UpdateSlots(ctx context.Context, item Event) error
	Delete(ctx context.Context, id int64) error
}
