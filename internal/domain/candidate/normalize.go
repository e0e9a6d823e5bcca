package candidate

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Raw is what a source adapter extracts before normalization. Only URL is
// required; everything else is filled in when the source provides it.
type Raw struct {
	Source   string
	BaseURL  string
	URL      string
	Title    string
	Text     string
	Slug     string
	ID       string
	Provider string
	HomeTeam string
	AwayTeam string
	Category string
}

const CategoryOther = "other"

var blockedExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {}, ".bmp": {}, ".avif": {},
	".css": {}, ".js": {}, ".mjs": {}, ".map": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".xml": {}, ".rss": {}, ".pdf": {}, ".zip": {}, ".apk": {},
}

var blockedHostSuffixes = []string{
	"cloudflare.com", "cloudfront.net", "akamaihd.net", "jsdelivr.net", "unpkg.com", "bootstrapcdn.com",
	"googleapis.com", "gstatic.com", "googletagmanager.com", "google-analytics.com", "doubleclick.net",
	"facebook.com", "twitter.com", "x.com", "instagram.com", "tiktok.com", "reddit.com", "t.me", "discord.gg", "discord.com",
}

var blockedPaths = map[string]struct{}{
	"": {}, "/live": {}, "/channels": {}, "/channel": {}, "/schedule": {}, "/login": {}, "/register": {}, "/signup": {},
	"/contact": {}, "/about": {}, "/privacy": {}, "/terms": {}, "/dmca": {}, "/faq": {}, "/search": {},
	"/categories": {}, "/category": {}, "/sports": {}, "/home": {}, "/index.html": {},
}

var slugPrefixes = map[string]struct{}{
	"ppv": {}, "watch": {}, "live": {}, "stream": {}, "streams": {}, "embed": {}, "hd": {},
}

var (
	numericToken   = regexp.MustCompile(`^\d+$`)
	separatorRegex = regexp.MustCompile(`(?i)\s+(vs\.?|v\.?|@|at)\s+`)
	spaceRegex     = regexp.MustCompile(`\s+`)
)

// Normalize turns a raw listing into a candidate. It rejects blacklisted
// links and listings with nothing to match on.
func Normalize(raw Raw, scannedAt time.Time) (Candidate, bool) {
	resolved, ok := ResolveLink(raw.BaseURL, raw.URL)
	if !ok || IsBlacklistedLink(resolved) {
		return Candidate{}, false
	}

	id := strings.TrimSpace(raw.ID)
	slug := strings.TrimSpace(raw.Slug)
	if numericToken.MatchString(slug) {
		if id == "" {
			id = slug
		}
		slug = ""
	}
	if slug == "" {
		slug = SlugFromURL(resolved)
	}

	title := cleanText(raw.Title)
	if title == "" {
		if raw.HomeTeam != "" && raw.AwayTeam != "" {
			title = cleanText(raw.AwayTeam) + " vs " + cleanText(raw.HomeTeam)
		} else {
			title = SlugToName(slug)
		}
	}
	if title == "" {
		return Candidate{}, false
	}

	home, away := cleanText(raw.HomeTeam), cleanText(raw.AwayTeam)
	if home == "" || away == "" {
		if h, a, split := SplitTeams(title); split {
			home, away = h, a
		}
	}

	category := ClassifyCategory(raw.Category)
	if category == CategoryOther {
		category = ClassifyCategory(title, raw.Text, resolved)
	}

	provider := strings.ToLower(strings.TrimSpace(raw.Provider))
	if provider == "" {
		provider = strings.ToLower(strings.TrimSpace(raw.Source))
	}

	return Candidate{
		Title:     title,
		HomeTeam:  home,
		AwayTeam:  away,
		Provider:  provider,
		Slug:      slug,
		ID:        id,
		URL:       resolved,
		Source:    raw.Source,
		Category:  category,
		ScannedAt: scannedAt,
	}, true
}

// Dedupe keeps the first candidate for every MatchID, preserving order.
func Dedupe(items []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(items))
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		key := item.MatchID()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ResolveLink resolves href against base and keeps only http(s) results.
func ResolveLink(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() {
		if strings.HasPrefix(href, "//") {
			ref.Scheme = "https"
		} else {
			baseURL, err := url.Parse(strings.TrimSpace(base))
			if err != nil || !baseURL.IsAbs() {
				return "", false
			}
			ref = baseURL.ResolveReference(ref)
		}
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	if ref.Host == "" {
		return "", false
	}
	ref.Fragment = ""
	return ref.String(), true
}

// IsBlacklistedLink rejects assets, CDN and social hosts, and generic
// navigation pages that never identify a single match.
func IsBlacklistedLink(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, blocked := blockedExtensions[ext]; blocked {
		return true
	}

	host := strings.ToLower(parsed.Hostname())
	if ext != ".m3u8" {
		if strings.HasPrefix(host, "cdn.") || strings.Contains(host, ".cdn.") || strings.HasPrefix(host, "static.") {
			return true
		}
		for _, suffix := range blockedHostSuffixes {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}

	p := strings.ToLower(strings.TrimRight(parsed.Path, "/"))
	_, blocked := blockedPaths[p]
	return blocked
}

// SlugFromURL returns the last path segment that is not a bare number.
func SlugFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := strings.TrimSpace(segments[i])
		if seg == "" || numericToken.MatchString(seg) {
			continue
		}
		seg = strings.TrimSuffix(seg, path.Ext(seg))
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		return strings.ToLower(seg)
	}
	return ""
}

// SlugToName derives a display name from a slug: hyphens and underscores
// split tokens, a trailing numeric id and leading provider prefixes are
// dropped, and the rest is title-cased.
func SlugToName(slug string) string {
	tokens := strings.FieldsFunc(strings.ToLower(slug), func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || unicode.IsSpace(r)
	})

	for len(tokens) > 0 && numericToken.MatchString(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	for len(tokens) > 0 {
		if _, prefix := slugPrefixes[tokens[0]]; !prefix {
			break
		}
		tokens = tokens[1:]
	}

	for i, tok := range tokens {
		tokens[i] = titleCase(tok)
	}
	return strings.Join(tokens, " ")
}

// SplitTeams splits "Away vs Home", "Away @ Home" or "Away at Home".
// A bare "v" follows the football convention of "Home v Away".
func SplitTeams(name string) (home, away string, ok bool) {
	loc := separatorRegex.FindStringSubmatchIndex(name)
	if loc == nil {
		return "", "", false
	}
	left := cleanText(name[:loc[0]])
	right := cleanText(name[loc[1]:])
	if left == "" || right == "" {
		return "", "", false
	}
	sep := strings.ToLower(strings.TrimSuffix(name[loc[2]:loc[3]], "."))
	right = trimTrailingNoise(right)
	if sep == "v" {
		return left, right, true
	}
	return right, left, true
}

var trailingNoise = map[string]struct{}{"live": {}, "stream": {}, "hd": {}, "free": {}, "online": {}}

func trimTrailingNoise(value string) string {
	words := strings.Fields(value)
	for len(words) > 1 {
		if _, noise := trailingNoise[strings.ToLower(words[len(words)-1])]; !noise {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func titleCase(tok string) string {
	if tok == "" {
		return tok
	}
	runes := []rune(tok)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func cleanText(value string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(value, " "))
}
