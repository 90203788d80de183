package logview

import (
	"strconv"
	"strings"
)

// DefaultLimit is the number of visible entries when the limit control is empty or invalid.
const DefaultLimit = 100

// Criteria holds the current values of the filter controls.
type Criteria struct {
	// Level must appear in an entry's plain text, case-insensitively. Empty matches all.
	Level string
	// Keyword must appear in an entry's plain text, case-insensitively. Empty matches all.
	Keyword string
	// Limit is the maximum number of most recent matches shown. Zero or less shows nothing.
	Limit int
}

// DefaultCriteria matches every entry and shows the last DefaultLimit of them.
func DefaultCriteria() Criteria {
	return Criteria{Level: "", Keyword: "", Limit: DefaultLimit}
}

// ParseLimit converts the text of the limit control into a limit. Empty or non-numeric text
// yields DefaultLimit; negative numbers are clamped to zero.
func ParseLimit(text string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return DefaultLimit
	}

	return max(limit, 0)
}

// Select returns, in arrival order, the last criteria.Limit entries whose plain text
// contains both the level and the keyword.
func Select(entries []Entry, criteria Criteria) []Entry {
	if criteria.Limit <= 0 {
		return []Entry{}
	}

	level := strings.ToLower(criteria.Level)
	keyword := strings.ToLower(criteria.Keyword)

	// Walk backwards so only the kept matches are collected.
	kept := make([]Entry, 0, min(criteria.Limit, len(entries)))

	for i := len(entries) - 1; i >= 0 && len(kept) < criteria.Limit; i-- {
		if matches(entries[i].Plain, level, keyword) {
			kept = append(kept, entries[i])
		}
	}

	for left, right := 0, len(kept)-1; left < right; left, right = left+1, right-1 {
		kept[left], kept[right] = kept[right], kept[left]
	}

	return kept
}

func matches(plain, level, keyword string) bool {
	if level == "" && keyword == "" {
		return true
	}

	lower := strings.ToLower(plain)

	return strings.Contains(lower, level) && strings.Contains(lower, keyword)
}
