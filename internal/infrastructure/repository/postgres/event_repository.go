package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/live-links/internal/domain/event"
	qb "github.com/riskibarqy/live-links/internal/platform/querybuilder"
)

// The WHERE clause repeats event.OwnedByPipeline so an operator edit that
// lands between our read and this write still wins.
const upsertEventLinksSuffix = `
ON CONFLICT (external_id) DO UPDATE SET
    name = EXCLUDED.name,
    kickoff_at = EXCLUDED.kickoff_at,
    sport = EXCLUDED.sport,
    league = EXCLUDED.league,
    home_team = EXCLUDED.home_team,
    away_team = EXCLUDED.away_team,
    thumbnail = CASE WHEN EXCLUDED.thumbnail <> '' THEN EXCLUDED.thumbnail ELSE events.thumbnail END,
    status = EXCLUDED.status,
    is_live = EXCLUDED.is_live,
    is_active = TRUE,
    stream_url = EXCLUDED.stream_url,
    stream_url_2 = EXCLUDED.stream_url_2,
    stream_url_3 = EXCLUDED.stream_url_3,
    pending_stream_url = EXCLUDED.pending_stream_url,
    pending_stream_url_2 = EXCLUDED.pending_stream_url_2,
    pending_stream_url_3 = EXCLUDED.pending_stream_url_3,
    updated_at = NOW()
WHERE (events.stream_url = '' OR events.stream_url = events.pending_stream_url)
  AND (events.stream_url_2 = '' OR events.stream_url_2 = events.pending_stream_url_2)
  AND (events.stream_url_3 = '' OR events.stream_url_3 = events.pending_stream_url_3)
RETURNING id, (xmax = 0) AS created`

type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByExternalID(ctx context.Context, externalID string) (event.Event, bool, error) {
	query, args, err := qb.Select("*").From(eventsTable).
		Where(qb.Eq("external_id", strings.TrimSpace(externalID))).
		Limit(1).
		ToSQL()
	if err != nil {
		return event.Event{}, false, fmt.Errorf("build select event by external id query: %w", err)
	}

	var row eventTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return event.Event{}, false, nil
		}
		return event.Event{}, false, fmt.Errorf("get event external_id=%s: %w", externalID, err)
	}

	return eventFromRow(row), true, nil
}

// UpsertLinks reports created for a fresh insert and applied=false when the
// ownership guard rejected the update.
func (r *EventRepository) UpsertLinks(ctx context.Context, item event.Event) (bool, bool, error) {
	insert := eventInsertModel{
		ExternalID:        item.ExternalID,
		Name:              item.Name,
		KickoffAt:         sql.NullTime{Time: item.KickoffAt, Valid: !item.KickoffAt.IsZero()},
		Sport:             item.Sport,
		League:            item.League,
		HomeTeam:          item.HomeTeam,
		AwayTeam:          item.AwayTeam,
		Thumbnail:         item.Thumbnail,
		Status:            item.Status,
		IsLive:            item.IsLive,
		IsActive:          true,
		StreamURL:         item.Slots[0],
		StreamURL2:        item.Slots[1],
		StreamURL3:        item.Slots[2],
		PendingStreamURL:  item.PendingSlots[0],
		PendingStreamURL2: item.PendingSlots[1],
		PendingStreamURL3: item.PendingSlots[2],
	}
	query, args, err := qb.InsertModel(eventsTable, insert, upsertEventLinksSuffix)
	if err != nil {
		return false, false, fmt.Errorf("build upsert event links query: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return false, false, fmt.Errorf("upsert event links external_id=%s: %w", item.ExternalID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, false, fmt.Errorf("upsert event links external_id=%s: %w", item.ExternalID, err)
		}
		return false, false, nil
	}

	var (
		id      int64
		created bool
	)
	if err := rows.Scan(&id, &created); err != nil {
		return false, false, fmt.Errorf("scan upserted event external_id=%s: %w", item.ExternalID, err)
	}
	return created, true, nil
}

func (r *EventRepository) ListActiveWithLinks(ctx context.Context) ([]event.Event, error) {
	query, args, err := qb.Select("*").From(eventsTable).
		Where(
			qb.Eq("is_active", true),
			qb.NonEmptyAny("stream_url", "stream_url_2", "stream_url_3"),
		).
		OrderBy("id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select active events query: %w", err)
	}

	var rows []eventTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select active events: %w", err)
	}

	out := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, eventFromRow(row))
	}
	return out, nil
}

func (r *EventRepository) UpdateSlots(ctx context.Context, item event.Event) error {
	query, args, err := qb.Update(eventsTable).
		Set("stream_url", item.Slots[0]).
		Set("stream_url_2", item.Slots[1]).
		Set("stream_url_3", item.Slots[2]).
		Set("pending_stream_url", item.PendingSlots[0]).
		Set("pending_stream_url_2", item.PendingSlots[1]).
		Set("pending_stream_url_3", item.PendingSlots[2]).
		SetNow("updated_at").
		Where(qb.Eq("id", item.ID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update event slots query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update event slots id=%d: %w", item.ID, err)
	}
	return requireRow(res, "update event slots", item.ID)
}

func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := qb.DeleteFrom(eventsTable).
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete event query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete event id=%d: %w", id, err)
	}
	return nil
}

func eventFromRow(row eventTableModel) event.Event {
	item := event.Event{
		ID:         row.ID,
		ExternalID: row.ExternalID.String,
		Name:       row.Name,
		Sport:      row.Sport,
		League:     row.League,
		HomeTeam:   row.HomeTeam,
		AwayTeam:   row.AwayTeam,
		Thumbnail:  row.Thumbnail,
		Status:     event.NormalizeStatus(row.Status),
		IsLive:     row.IsLive,
		IsActive:   row.IsActive,
		UpdatedAt:  row.UpdatedAt,
	}
	item.Slots = [event.SlotCount]string{row.StreamURL, row.StreamURL2, row.StreamURL3}
	item.PendingSlots = [event.SlotCount]string{row.PendingStreamURL, row.PendingStreamURL2, row.PendingStreamURL3}
	if row.KickoffAt.Valid {
		item.KickoffAt = row.KickoffAt.Time
	}
	return item
}
