package candidate

import "strings"

type categoryRule struct {
	name     string
	keywords []string
}

// Order matters: american football is checked before soccer so that
// "college football" does not land in soccer.
var categoryRules = []categoryRule{
	{name: "american-football", keywords: []string{"nfl", "ncaaf", "american football", "college football", "super bowl"}},
	{name: "basketball", keywords: []string{"nba", "wnba", "ncaab", "basketball", "euroleague"}},
	{name: "hockey", keywords: []string{"nhl", "hockey", "khl"}},
	{name: "baseball", keywords: []string{"mlb", "baseball"}},
	{name: "fighting", keywords: []string{"ufc", "mma", "boxing", "bellator", "wwe", "fight night"}},
	{name: "motorsport", keywords: []string{"f1", "formula 1", "formula one", "nascar", "motogp", "indycar", "grand prix", "motorsport"}},
	{name: "tennis", keywords: []string{"tennis", "atp", "wta", "wimbledon"}},
	{name: "cricket", keywords: []string{"cricket", "ipl", "t20", "odi"}},
	{name: "rugby", keywords: []string{"rugby", "six nations", "nrl", "super rugby"}},
	{name: "soccer", keywords: []string{
		"soccer", "football", "premier league", "epl", "la liga", "laliga", "serie a", "bundesliga",
		"ligue 1", "champions league", "ucl", "europa league", "mls", "uefa", "fifa", "fc",
	}},
}

// ClassifyCategory maps free text to a sport category by keyword. Texts are
// checked in order and the first hit wins; no hit yields CategoryOther.
func ClassifyCategory(texts ...string) string {
	for _, text := range texts {
		normalized := wordsOf(text)
		if normalized == "" {
			continue
		}
		padded := " " + normalized + " "
		for _, rule := range categoryRules {
			// Category names go through the same word split, so an
			// upstream "american-football" tag reads as "american football".
			if wordsOf(rule.name) == normalized {
				return rule.name
			}
			for _, keyword := range rule.keywords {
				if strings.Contains(padded, " "+keyword+" ") {
					return rule.name
				}
			}
		}
	}
	return CategoryOther
}

func wordsOf(text string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(text), isWordBreak), " ")
}

func isWordBreak(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	case r > 127:
		return false
	}
	return true
}
