package provider

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// SlugPlaceholder is replaced with the event slug in every template.
const SlugPlaceholder = "{slug}"

// Template is a named embed provider that serves any event by slug.
type Template struct {
	Name string
	URL  string
}

// Build renders the provider URL for slug.
func (t Template) Build(slug string) string {
	return strings.ReplaceAll(t.URL, SlugPlaceholder, url.PathEscape(slug))
}

// Host returns the template host, used to attribute candidate URLs.
func (t Template) Host() string {
	parsed, err := url.Parse(strings.ReplaceAll(t.URL, SlugPlaceholder, "x"))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// ParseTemplates reads "name=template,name=template". Every template must
// be an absolute http(s) URL containing the slug placeholder.
func ParseTemplates(raw string) ([]Template, error) {
	out := make([]Template, 0, 4)
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, tmpl, ok := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		tmpl = strings.TrimSpace(tmpl)
		if !ok || name == "" || tmpl == "" {
			return nil, fmt.Errorf("invalid provider %q: want name=template", part)
		}
		if !strings.Contains(tmpl, SlugPlaceholder) {
			return nil, fmt.Errorf("provider %s template must contain %s", name, SlugPlaceholder)
		}
		parsed, err := url.Parse(strings.ReplaceAll(tmpl, SlugPlaceholder, "x"))
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("provider %s template must be an absolute http(s) url", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate provider %s", name)
		}
		seen[name] = struct{}{}
		out = append(out, Template{Name: name, URL: tmpl})
	}
	return out, nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases value and joins its alphanumeric runs with hyphens.
func Slugify(value string) string {
	value = strings.NewReplacer(".", "", "'", "").Replace(strings.ToLower(value))
	return strings.Trim(nonSlugChars.ReplaceAllString(value, "-"), "-")
}

// PPVSlug builds the deterministic slug "ppv-<away>-vs-<home>". It returns
// "" when either team is missing.
func PPVSlug(away, home string) string {
	a, h := Slugify(away), Slugify(home)
	if a == "" || h == "" {
		return ""
	}
	return "ppv-" + a + "-vs-" + h
}

// Siblings returns templates other than exclude, preserving order.
func Siblings(templates []Template, exclude string) []Template {
	exclude = strings.ToLower(strings.TrimSpace(exclude))
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		if t.Name == exclude {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ForURL finds the template whose host serves rawURL.
func ForURL(templates []Template, rawURL string) (Template, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Template{}, false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, t := range templates {
		if h := t.Host(); h != "" && h == host {
			return t, true
		}
	}
	return Template{}, false
}

// BuildAll renders up to limit URLs for slug from templates in order.
func BuildAll(templates []Template, slug string, limit int) []string {
	if slug == "" || limit <= 0 {
		return nil
	}
	out := make([]string, 0, limit)
	for _, t := range templates {
		if len(out) == limit {
			break
		}
		out = append(out, t.Build(slug))
	}
	return out
}
