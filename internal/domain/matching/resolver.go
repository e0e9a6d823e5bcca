package matching

import (
	"math"
	"strings"
	"unicode"

	"github.com/riskibarqy/live-links/internal/domain/candidate"
	"github.com/riskibarqy/live-links/internal/domain/event"
)

const (
	// MinFragmentLength excludes short team fragments ("la", "fc") from the strict pass.
	MinFragmentLength = 4
	// LooseOverlapRatio is the share of the canonical key length the shared
	// character set must exceed.
	LooseOverlapRatio = 0.6
	// LooseOverlapFloor is the absolute minimum shared character count.
	LooseOverlapFloor = 8
)

var suffixTokens = map[string]struct{}{
	"fc": {}, "cf": {}, "sc": {}, "afc": {}, "united": {}, "city": {}, "club": {},
}

// Resolve returns the first candidate in pool order that passes the strict
// or the loose pass for item.
func Resolve(item event.Event, pool []candidate.Candidate) (candidate.Candidate, bool) {
	homeFragments := TeamFragments(item.HomeTeam)
	awayFragments := TeamFragments(item.AwayTeam)
	canonical := canonicalKey(item)

	for _, c := range pool {
		name := NormalizedTeamKey(c.Name())
		if name == "" {
			continue
		}
		if strictMatch(name, homeFragments, awayFragments) || looseMatch(canonical, name) {
			return c, true
		}
	}
	return candidate.Candidate{}, false
}

// NormalizedTeamKey lowercases value, drops club suffix tokens and strips
// everything that is not a letter or digit.
func NormalizedTeamKey(value string) string {
	return strings.Join(keyWords(value), "")
}

// locationWords are city and region words shared by several clubs. They only
// count as team evidence through the full key, never on their own.
var locationWords = map[string]struct{}{
	"los": {}, "angeles": {}, "new": {}, "york": {}, "jersey": {}, "england": {}, "orleans": {},
	"boston": {}, "chicago": {}, "san": {}, "francisco": {}, "diego": {}, "antonio": {}, "jose": {},
	"saint": {}, "louis": {}, "tampa": {}, "bay": {}, "kansas": {}, "las": {}, "vegas": {},
	"golden": {}, "state": {}, "oklahoma": {}, "philadelphia": {}, "toronto": {}, "miami": {},
	"detroit": {}, "dallas": {}, "houston": {}, "washington": {}, "denver": {}, "minnesota": {},
	"atlanta": {}, "seattle": {}, "pittsburgh": {}, "florida": {}, "carolina": {}, "arizona": {},
	"madrid": {}, "milan": {}, "manchester": {}, "london": {}, "sheffield": {}, "bristol": {},
	"buenos": {}, "aires": {}, "sao": {}, "paulo": {}, "rio": {}, "janeiro": {},
}

// TeamFragments lists the comparison fragments of a team name: its full key
// and its distinctive words with a prefix of the long ones. A word is
// distinctive when it is not a location word; a name made only of location
// words keeps its last word.
func TeamFragments(team string) []string {
	words := keyWords(team)
	if len(words) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(words)*2+1)
	out := make([]string, 0, len(words)*2+1)
	add := func(fragment string) {
		if len([]rune(fragment)) < MinFragmentLength {
			return
		}
		if _, ok := seen[fragment]; ok {
			return
		}
		seen[fragment] = struct{}{}
		out = append(out, fragment)
	}

	add(strings.Join(words, ""))
	for _, word := range distinctiveWords(words) {
		add(word)
		runes := []rune(word)
		if len(runes) >= 6 {
			n := int(math.Ceil(float64(len(runes)) * 0.75))
			add(string(runes[:n]))
		}
	}
	return out
}

func distinctiveWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, word := range words {
		if _, location := locationWords[word]; !location {
			out = append(out, word)
		}
	}
	if len(out) == 0 {
		return words[len(words)-1:]
	}
	return out
}

func strictMatch(name string, home, away []string) bool {
	if len(home) == 0 || len(away) == 0 {
		return false
	}
	return containsAny(name, home) && containsAny(name, away)
}

func containsAny(name string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

func looseMatch(canonical, name string) bool {
	if canonical == "" {
		return false
	}
	overlap := sharedCharacters(canonical, name)
	return float64(overlap) > LooseOverlapRatio*float64(len([]rune(canonical))) && overlap >= LooseOverlapFloor
}

func sharedCharacters(a, b string) int {
	set := make(map[rune]struct{}, len(b))
	for _, r := range b {
		set[r] = struct{}{}
	}
	shared := make(map[rune]struct{}, len(set))
	for _, r := range a {
		if _, ok := set[r]; ok {
			shared[r] = struct{}{}
		}
	}
	return len(shared)
}

func canonicalKey(item event.Event) string {
	if item.HomeTeam != "" && item.AwayTeam != "" {
		return NormalizedTeamKey(item.AwayTeam + " " + item.HomeTeam)
	}
	return NormalizedTeamKey(item.Name)
}

func keyWords(value string) []string {
	value = strings.NewReplacer(".", "", "'", "").Replace(strings.ToLower(value))
	words := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) <= 1 {
		return words
	}

	kept := make([]string, 0, len(words))
	for _, word := range words {
		if _, suffix := suffixTokens[word]; suffix {
			continue
		}
		kept = append(kept, word)
	}
	if len(kept) == 0 {
		return words
	}
	return kept
}
