// Package query filters and orders diary entries for search.
package query

import (
	"sort"
	"strings"

	"github.com/pbaille/diary/internal/domain"
)

// Filter returns the entries matching q, most recent first. An empty q
// matches everything. Otherwise an entry matches when its text or timestamp
// string contains q (case-insensitive) or its primary emotion is exactly q.
// The input slice is left untouched.
func Filter(entries []domain.Entry, q string) []domain.Entry {
	needle := strings.ToLower(q)

	out := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if q == "" || matches(e, q, needle) {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// matches reports whether e matches the raw query q; needle is q lowercased.
func matches(e domain.Entry, q, needle string) bool {
	return strings.Contains(strings.ToLower(e.Text), needle) ||
		strings.Contains(strings.ToLower(e.TimestampString()), needle) ||
		e.PrimaryEmotion.MatchesEmotion(q)
}
