package source

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type Kind string

const (
	KindJSON Kind = "json"
	KindHTML Kind = "html"
)

// DefaultLinkPattern matches "/watch/<slug>" with an optional "-<id>" tail.
const DefaultLinkPattern = `(?i)/watch/[a-z0-9][a-z0-9_-]*`

// Descriptor describes one listing source.
type Descriptor struct {
	Name        string
	Kind        Kind
	URL         string
	Provider    string
	LinkPattern *regexp.Regexp
}

// ParseDescriptors reads "name|kind|url|provider[|pattern]" entries
// separated by ";".
func ParseDescriptors(raw string) ([]Descriptor, error) {
	out := make([]Descriptor, 0, 8)
	seen := make(map[string]struct{})
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, "|")
		if len(parts) < 3 || len(parts) > 5 {
			return nil, fmt.Errorf("invalid source %q: want name|kind|url|provider[|pattern]", entry)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		desc := Descriptor{
			Name: strings.ToLower(parts[0]),
			Kind: Kind(strings.ToLower(parts[1])),
			URL:  parts[2],
		}
		if desc.Name == "" {
			return nil, fmt.Errorf("invalid source %q: name is required", entry)
		}
		if _, dup := seen[desc.Name]; dup {
			return nil, fmt.Errorf("duplicate source %s", desc.Name)
		}
		seen[desc.Name] = struct{}{}

		if desc.Kind != KindJSON && desc.Kind != KindHTML {
			return nil, fmt.Errorf("source %s: unknown kind %q", desc.Name, parts[1])
		}
		parsed, err := url.Parse(desc.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("source %s: url must be absolute http(s)", desc.Name)
		}
		if len(parts) >= 4 {
			desc.Provider = strings.ToLower(parts[3])
		}

		pattern := DefaultLinkPattern
		if len(parts) == 5 && parts[4] != "" {
			pattern = parts[4]
		}
		desc.LinkPattern, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("source %s: parse link pattern: %w", desc.Name, err)
		}

		out = append(out, desc)
	}
	return out, nil
}
