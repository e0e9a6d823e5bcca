package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/live-links/internal/domain/candidate"
	qb "github.com/riskibarqy/live-links/internal/platform/querybuilder"
)

const upsertScrapedLinkSuffix = `
ON CONFLICT (match_id) DO UPDATE SET
    title = EXCLUDED.title,
    category = EXCLUDED.category,
    home_team = EXCLUDED.home_team,
    away_team = EXCLUDED.away_team,
    source = EXCLUDED.source,
    provider_urls = EXCLUDED.provider_urls,
    scan_generation = EXCLUDED.scan_generation,
    scanned_at = EXCLUDED.scanned_at`

// ScrapedLinkRepository stores the live_scraped_links snapshot. Every scan
// writes a whole generation and drops the older ones in one transaction.
type ScrapedLinkRepository struct {
	db *sqlx.DB
}

func NewScrapedLinkRepository(db *sqlx.DB) *ScrapedLinkRepository {
	return &ScrapedLinkRepository{db: db}
}

func (r *ScrapedLinkRepository) ReplaceGeneration(ctx context.Context, generation int64, links []candidate.Link) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for scraped links generation=%d: %w", generation, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, link := range links {
		providerURLs, err := encodeProviderURLs(link.ProviderURLs)
		if err != nil {
			return fmt.Errorf("encode provider urls match_id=%s: %w", link.MatchID, err)
		}
		scannedAt := link.ScannedAt
		if scannedAt.IsZero() {
			scannedAt = time.Now().UTC()
		}

		query, args, err := qb.InsertModel(scrapedLinksTable, scrapedLinkInsertModel{
			MatchID:        link.MatchID,
			Title:          link.Title,
			Category:       link.Category,
			HomeTeam:       link.HomeTeam,
			AwayTeam:       link.AwayTeam,
			Source:         link.Source,
			ProviderURLs:   providerURLs,
			ScanGeneration: generation,
			ScannedAt:      scannedAt,
		}, upsertScrapedLinkSuffix)
		if err != nil {
			return fmt.Errorf("build upsert scraped link query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert scraped link match_id=%s: %w", link.MatchID, err)
		}
	}

	query, args, err := qb.DeleteFrom(scrapedLinksTable).
		Where(qb.Lt("scan_generation", generation)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete stale scraped links query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete scraped links older than generation=%d: %w", generation, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scraped links generation=%d: %w", generation, err)
	}
	return nil
}

func (r *ScrapedLinkRepository) ListCurrent(ctx context.Context) ([]candidate.Link, error) {
	query, args, err := qb.Select(
		"id",
		"match_id",
		"title",
		"category",
		"home_team",
		"away_team",
		"source",
		"provider_urls::text AS provider_urls",
		"scan_generation",
		"scanned_at",
	).From(scrapedLinksTable).
		OrderBy("category", "title", "match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select scraped links query: %w", err)
	}

	var rows []scrapedLinkTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select scraped links: %w", err)
	}

	out := make([]candidate.Link, 0, len(rows))
	for _, row := range rows {
		out = append(out, candidate.Link{
			MatchID:        row.MatchID,
			Title:          row.Title,
			Category:       row.Category,
			HomeTeam:       row.HomeTeam,
			AwayTeam:       row.AwayTeam,
			Source:         row.Source,
			ProviderURLs:   decodeProviderURLs(row.ProviderURLs),
			ScanGeneration: row.ScanGeneration,
			ScannedAt:      row.ScannedAt,
		})
	}
	return out, nil
}

func encodeProviderURLs(value map[string]string) (string, error) {
	if len(value) == 0 {
		return "{}", nil
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeProviderURLs(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &out); err != nil {
		return map[string]string{}
	}
	return out
}
