package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/live-links/internal/domain/candidate"
)

var listKeys = []string{"data", "matches", "events", "results", "items"}

// JSONAdapter reads structured listing APIs.
type JSONAdapter struct {
	baseAdapter
}

func (a *JSONAdapter) Fetch(ctx context.Context) ([]candidate.Candidate, error) {
	raw, err := a.fetcher.Fetch(ctx, a.desc.Name, a.desc.URL)
	if err != nil {
		return nil, err
	}
	raws, err := ParseJSONListing(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s listing: %w", a.desc.Name, err)
	}
	return a.normalize(raws), nil
}

// ParseJSONListing accepts a top-level array or an object wrapping one under
// a common key, and extracts one raw record per item.
func ParseJSONListing(raw []byte) ([]candidate.Raw, error) {
	var payload any
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	items := listItems(payload)
	out := make([]candidate.Raw, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := candidate.Raw{
			Title:    getString(obj, "title", "name"),
			HomeTeam: teamName(obj, "home"),
			AwayTeam: teamName(obj, "away"),
			URL:      itemURL(obj),
			Category: getString(obj, "category", "sport"),
			Slug:     getString(obj, "slug"),
			ID:       getString(obj, "id"),
			Provider: getString(obj, "provider"),
		}
		if rec.Provider == "" {
			rec.Provider = firstSourceField(obj, "source", "provider", "name")
		}
		if rec.URL == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func listItems(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range listKeys {
			if items, ok := v[key].([]any); ok {
				return items
			}
		}
	}
	return nil
}

func teamName(obj map[string]any, side string) string {
	if teams, ok := obj["teams"].(map[string]any); ok {
		if name := nameOf(teams[side]); name != "" {
			return name
		}
	}
	for _, key := range []string{side, side + "Team", side + "_team"} {
		if name := nameOf(obj[key]); name != "" {
			return name
		}
	}
	return ""
}

func nameOf(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return getString(v, "name", "title")
	}
	return ""
}

func itemURL(obj map[string]any) string {
	if u := getString(obj, "url", "link", "embed", "embedUrl", "embed_url"); u != "" {
		return u
	}
	return firstSourceField(obj, "url", "embedUrl", "link")
}

func firstSourceField(obj map[string]any, keys ...string) string {
	sources, ok := obj["sources"].([]any)
	if !ok || len(sources) == 0 {
		return ""
	}
	switch first := sources[0].(type) {
	case string:
		if keys[0] == "url" {
			return strings.TrimSpace(first)
		}
	case map[string]any:
		return getString(first, keys...)
	}
	return ""
}

func getString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	}
	return ""
}
