package candidate

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Candidate is an unverified (name, URL) pair scraped during one scan.
type Candidate struct {
	Title     string    `json:"title"`
	HomeTeam  string    `json:"homeTeam,omitempty"`
	AwayTeam  string    `json:"awayTeam,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	ID        string    `json:"id,omitempty"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Category  string    `json:"category"`
	ScannedAt time.Time `json:"scannedAt"`
}

// MatchID is the provider-scoped key of a candidate in the snapshot table.
// The listing's own id wins over the slug when the source provides one.
func (c Candidate) MatchID() string {
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	key := strings.ToLower(strings.TrimSpace(c.ID))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(c.Slug))
	}
	if provider != "" && key != "" {
		return provider + ":" + key
	}
	sum := sha1.Sum([]byte(strings.TrimSpace(c.URL)))
	return "url:" + hex.EncodeToString(sum[:10])
}

// Name is the display name used for matching: the title when present,
// otherwise "away vs home".
func (c Candidate) Name() string {
	if title := strings.TrimSpace(c.Title); title != "" {
		return title
	}
	if c.HomeTeam != "" && c.AwayTeam != "" {
		return c.AwayTeam + " vs " + c.HomeTeam
	}
	return c.HomeTeam + c.AwayTeam
}

// MaxProviderURLs caps the provider URLs kept per snapshot row.
const MaxProviderURLs = 4

// Link is one row of the live_scraped_links snapshot.
type Link struct {
	MatchID        string            `json:"matchId"`
	Title          string            `json:"title"`
	Category       string            `json:"category"`
	HomeTeam       string            `json:"homeTeam,omitempty"`
	AwayTeam       string            `json:"awayTeam,omitempty"`
	Source         string            `json:"source"`
	ProviderURLs   map[string]string `json:"providerUrls"`
	ScanGeneration int64             `json:"scanGeneration"`
	ScannedAt      time.Time         `json:"scannedAt"`
}

// SourceError records a source that contributed nothing this scan.
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}
