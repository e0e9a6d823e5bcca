package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/event"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestEventRepository_UpsertLinks(t *testing.T) {
	item := event.Event{
		ExternalID: "401585123",
		Name:       "Boston Celtics at Los Angeles Lakers",
		League:     "nba",
		Sport:      "basketball",
		KickoffAt:  time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		Status:     event.StatusUpcoming,
	}
	item.Slots = [event.SlotCount]string{"https://alpha.example/embed/lakers-vs-celtics"}
	item.PendingSlots = item.Slots

	t.Run("fresh insert", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO events").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow(7, true))

		created, applied, err := NewEventRepository(db).UpsertLinks(context.Background(), item)
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if !created || !applied {
			t.Fatalf("expected created and applied, got created=%t applied=%t", created, applied)
		}
	})

	t.Run("ownership guard rejects update", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO events").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created"}))

		created, applied, err := NewEventRepository(db).UpsertLinks(context.Background(), item)
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if created || applied {
			t.Fatalf("expected guarded no-op, got created=%t applied=%t", created, applied)
		}
	})

	t.Run("driver error", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("INSERT INTO events").WillReturnError(errors.New("connection reset"))

		if _, _, err := NewEventRepository(db).UpsertLinks(context.Background(), item); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestEventRepository_GetByExternalIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM events").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, found, err := NewEventRepository(db).GetByExternalID(context.Background(), " missing ")
	if err != nil {
		t.Fatalf("expected no error for missing row, got %v", err)
	}
	if found {
		t.Fatalf("expected found=false")
	}
}

func TestEventRepository_UpdateSlotsMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewEventRepository(db).UpdateSlots(context.Background(), event.Event{ID: 99})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestEventRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM events").
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewEventRepository(db).Delete(context.Background(), 12); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestScrapedLinkRepository_ReplaceGeneration(t *testing.T) {
	links := []candidate.Link{
		{MatchID: "nba-lakers-celtics", Title: "Lakers vs Celtics", Category: "basketball", Source: "alpha"},
		{MatchID: "epl-arsenal-chelsea", Title: "Arsenal vs Chelsea", Category: "football", Source: "beta",
			ProviderURLs: map[string]string{"alpha": "https://alpha.example/embed/arsenal-vs-chelsea"}},
	}

	t.Run("writes generation and drops older rows", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO live_scraped_links").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO live_scraped_links").WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec("DELETE FROM live_scraped_links").
			WithArgs(int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		if err := NewScrapedLinkRepository(db).ReplaceGeneration(context.Background(), 4, links); err != nil {
			t.Fatalf("replace generation: %v", err)
		}
	})

	t.Run("rolls back on insert failure", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO live_scraped_links").WillReturnError(errors.New("unique violation"))
		mock.ExpectRollback()

		if err := NewScrapedLinkRepository(db).ReplaceGeneration(context.Background(), 5, links); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestScrapedLinkRepository_ListCurrent(t *testing.T) {
	db, mock := newMockDB(t)
	scannedAt := time.Date(2026, 3, 1, 19, 50, 0, 0, time.UTC)
	mock.ExpectQuery("FROM live_scraped_links").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "match_id", "title", "category", "home_team", "away_team",
			"source", "provider_urls", "scan_generation", "scanned_at",
		}).AddRow(
			1, "nba-lakers-celtics", "Lakers vs Celtics", "basketball", "Lakers", "Celtics",
			"alpha", `{"alpha":"https://alpha.example/embed/lakers-vs-celtics"}`, 4, scannedAt,
		))

	links, err := NewScrapedLinkRepository(db).ListCurrent(context.Background())
	if err != nil {
		t.Fatalf("list current: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	got := links[0]
	if got.ScanGeneration != 4 || got.HomeTeam != "Lakers" || !got.ScannedAt.Equal(scannedAt) {
		t.Fatalf("unexpected link: %+v", got)
	}
	if got.ProviderURLs["alpha"] != "https://alpha.example/embed/lakers-vs-celtics" {
		t.Fatalf("unexpected provider urls: %v", got.ProviderURLs)
	}
}
