package candidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FromHTMLAnchor(t *testing.T) {
	scannedAt := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	got, ok := Normalize(Raw{
		Source:  "streamed",
		BaseURL: "https://streams.example/schedule",
		URL:     "/watch/ppv-lakers-vs-celtics-12345",
		Text:    "NBA",
	}, scannedAt)

	require.True(t, ok)
	assert.Equal(t, "https://streams.example/watch/ppv-lakers-vs-celtics-12345", got.URL)
	assert.Equal(t, "Lakers Vs Celtics", got.Title)
	assert.Equal(t, "Lakers", got.AwayTeam)
	assert.Equal(t, "Celtics", got.HomeTeam)
	assert.Equal(t, "basketball", got.Category)
	assert.Equal(t, "streamed", got.Provider)
	assert.Equal(t, "streamed:ppv-lakers-vs-celtics-12345", got.MatchID())
	assert.Equal(t, scannedAt, got.ScannedAt)
}

func TestNormalize_RejectsBlacklisted(t *testing.T) {
	cases := []Raw{
		{BaseURL: "https://streams.example/", URL: "/static/logo.png"},
		{BaseURL: "https://streams.example/", URL: "/assets/site.css"},
		{BaseURL: "https://streams.example/", URL: "/live"},
		{BaseURL: "https://streams.example/", URL: "/"},
		{BaseURL: "https://streams.example/", URL: "https://twitter.com/streams"},
		{BaseURL: "https://streams.example/", URL: "https://cdn.streams.example/player.js"},
		{BaseURL: "https://streams.example/", URL: "javascript:void(0)"},
		{BaseURL: "https://streams.example/", URL: "#top"},
	}
	for _, raw := range cases {
		_, ok := Normalize(raw, time.Now())
		assert.False(t, ok, "expected %q to be rejected", raw.URL)
	}
}

func TestNormalize_PrefersStructuredFields(t *testing.T) {
	got, ok := Normalize(Raw{
		Source:   "api",
		URL:      "https://api.example/embed/abc",
		HomeTeam: "Boston Celtics",
		AwayTeam: "Los Angeles Lakers",
		Category: "Basketball",
		Provider: "Alpha",
		Slug:     "lakers-celtics",
	}, time.Now())

	require.True(t, ok)
	assert.Equal(t, "Los Angeles Lakers vs Boston Celtics", got.Title)
	assert.Equal(t, "Boston Celtics", got.HomeTeam)
	assert.Equal(t, "basketball", got.Category)
	assert.Equal(t, "alpha:lakers-celtics", got.MatchID())
}

func TestNormalize_NumericSlugFallsBackToLink(t *testing.T) {
	got, ok := Normalize(Raw{
		Source:   "api",
		Provider: "alpha",
		URL:      "https://alpha.example/embed/arsenal-vs-chelsea/4411",
		Title:    "Arsenal vs Chelsea",
		Slug:     "4411",
	}, time.Now())

	require.True(t, ok)
	assert.Equal(t, "arsenal-vs-chelsea", got.Slug)
	assert.Equal(t, "4411", got.ID)
	assert.Equal(t, "alpha:4411", got.MatchID())
}

func TestSlugToName(t *testing.T) {
	cases := map[string]string{
		"ppv-lakers-vs-celtics-12345": "Lakers Vs Celtics",
		"watch_arsenal_vs_chelsea":    "Arsenal Vs Chelsea",
		"live-stream-ufc-300":         "Ufc",
		"real-madrid-vs-barcelona":    "Real Madrid Vs Barcelona",
		"":                            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SlugToName(in), in)
	}
}

func TestSplitTeams(t *testing.T) {
	home, away, ok := SplitTeams("Lakers vs Celtics Live")
	require.True(t, ok)
	assert.Equal(t, "Celtics", home)
	assert.Equal(t, "Lakers", away)

	home, away, ok = SplitTeams("Arsenal v Chelsea")
	require.True(t, ok)
	assert.Equal(t, "Arsenal", home)
	assert.Equal(t, "Chelsea", away)

	home, away, ok = SplitTeams("Rangers @ Bruins")
	require.True(t, ok)
	assert.Equal(t, "Bruins", home)
	assert.Equal(t, "Rangers", away)

	_, _, ok = SplitTeams("Formula 1 Monaco Grand Prix")
	assert.False(t, ok)
}

func TestClassifyCategory(t *testing.T) {
	cases := map[string]string{
		"NBA: Lakers vs Celtics":       "basketball",
		"College Football Playoff":     "american-football",
		"Premier League - Arsenal":     "soccer",
		"Barcelona FC vs Sevilla":      "soccer",
		"UFC 300 Main Card":            "fighting",
		"Formula 1 Monaco Grand Prix":  "motorsport",
		"NHL: Rangers @ Bruins":        "hockey",
		"Something unrelated entirely": CategoryOther,
		"american-football":            "american-football",
		"Week 3 | American-Football":   "american-football",
		"NFL_Sunday_Ticket":            "american-football",
		"ice-hockey":                   "hockey",
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyCategory(in), in)
	}
}

func TestResolveLink(t *testing.T) {
	got, ok := ResolveLink("https://a.example/list/", "../watch/x#frag")
	require.True(t, ok)
	assert.Equal(t, "https://a.example/watch/x", got)

	got, ok = ResolveLink("", "//b.example/embed/y")
	require.True(t, ok)
	assert.Equal(t, "https://b.example/embed/y", got)

	_, ok = ResolveLink("not a url", "relative/path")
	assert.False(t, ok)

	_, ok = ResolveLink("https://a.example/", "mailto:team@example.com")
	assert.False(t, ok)
}

func TestDedupe_KeepsFirstByMatchID(t *testing.T) {
	items := []Candidate{
		{Provider: "alpha", Slug: "a-vs-b", URL: "https://x/1", Source: "one"},
		{Provider: "alpha", Slug: "a-vs-b", URL: "https://x/2", Source: "two"},
		{URL: "https://y/3"},
		{URL: "https://y/3"},
	}
	out := Dedupe(items)
	require.Len(t, out, 2)
	assert.Equal(t, "one", out[0].Source)
}
