package postgres

import (
	"database/sql"
	"time"
)

const eventsTable = "events"

type eventTableModel struct {
	ID                int64          `db:"id"`
	ExternalID        sql.NullString `db:"external_id"`
	Name              string         `db:"name"`
	KickoffAt         sql.NullTime   `db:"kickoff_at"`
	Sport             string         `db:"sport"`
	League            string         `db:"league"`
	HomeTeam          string         `db:"home_team"`
	AwayTeam          string         `db:"away_team"`
	Thumbnail         string         `db:"thumbnail"`
	Status            string         `db:"status"`
	IsLive            bool           `db:"is_live"`
	IsActive          bool           `db:"is_active"`
	StreamURL         string         `db:"stream_url"`
	StreamURL2        string         `db:"stream_url_2"`
	StreamURL3        string         `db:"stream_url_3"`
	PendingStreamURL  string         `db:"pending_stream_url"`
	PendingStreamURL2 string         `db:"pending_stream_url_2"`
	PendingStreamURL3 string         `db:"pending_stream_url_3"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type eventInsertModel struct {
	ExternalID        string       `db:"external_id"`
	Name              string       `db:"name"`
	KickoffAt         sql.NullTime `db:"kickoff_at"`
	Sport             string       `db:"sport"`
	League            string       `db:"league"`
	HomeTeam          string       `db:"home_team"`
	AwayTeam          string       `db:"away_team"`
	Thumbnail         string       `db:"thumbnail"`
	Status            string       `db:"status"`
	IsLive            bool         `db:"is_live"`
	IsActive          bool         `db:"is_active"`
	StreamURL         string       `db:"stream_url"`
	StreamURL2        string       `db:"stream_url_2"`
	StreamURL3        string       `db:"stream_url_3"`
	PendingStreamURL  string       `db:"pending_stream_url"`
	PendingStreamURL2 string       `db:"pending_stream_url_2"`
	PendingStreamURL3 string       `db:"pending_stream_url_3"`
}

const scrapedLinksTable = "live_scraped_links"

type scrapedLinkTableModel struct {
	ID             int64     `db:"id"`
	MatchID        string    `db:"match_id"`
	Title          string    `db:"title"`
	Category       string    `db:"category"`
	HomeTeam       string    `db:"home_team"`
	AwayTeam       string    `db:"away_team"`
	Source         string    `db:"source"`
	ProviderURLs   string    `db:"provider_urls"`
	ScanGeneration int64     `db:"scan_generation"`
	ScannedAt      time.Time `db:"scanned_at"`
}

type scrapedLinkInsertModel struct {
	MatchID        string    `db:"match_id"`
	Title          string    `db:"title"`
	Category       string    `db:"category"`
	HomeTeam       string    `db:"home_team"`
	AwayTeam       string    `db:"away_team"`
	Source         string    `db:"source"`
	ProviderURLs   string    `db:"provider_urls"`
	ScanGeneration int64     `db:"scan_generation"`
	ScannedAt      time.Time `db:"scanned_at"`
}
