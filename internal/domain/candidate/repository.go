package candidate

import "context"

// SnapshotRepository stores the per-scan snapshot of scraped links.
type SnapshotRepository interface {
	// ReplaceGeneration upserts links under generation and drops rows from
	// older generations in the same unit of work.
	ReplaceGeneration(ctx context.Context, generation int64, links []Link) error
	ListCurrent(ctx context.Context) ([]Link, error)
}
