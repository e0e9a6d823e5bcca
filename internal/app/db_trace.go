package app

import (
	"strings"
	"unicode/utf8"
)

// tracedQueryLimit bounds the db.statement attribute in bytes.
const tracedQueryLimit = 512

// redactQueryForTrace flattens a statement to one line and masks quoted
// literals, so stream URLs inlined by hand never reach the trace backend.
// Empty-string literals stay since the slot filters compare against ''.
func redactQueryForTrace(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '\'' {
			b.WriteByte(query[i])
			continue
		}
		end := closingQuote(query, i+1)
		if end == i+1 {
			b.WriteString("''")
		} else {
			b.WriteString("'?'")
		}
		i = end
	}
	return truncateRunes(b.String(), tracedQueryLimit)
}

// closingQuote returns the index of the quote ending the literal that opens
// before start, treating '' as an escaped quote. An unterminated literal
// runs to the end of the query.
func closingQuote(query string, start int) int {
	for j := start; j < len(query); j++ {
		if query[j] != '\'' {
			continue
		}
		if j == start || j+1 >= len(query) || query[j+1] != '\'' {
			return j
		}
		j++
	}
	return len(query) - 1
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
