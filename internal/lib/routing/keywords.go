package routing

import "strings"

// FilterByName keeps the items whose name contains any of the keywords,
// ignoring case. No keywords keeps nothing.
func FilterByName[T any](items []T, keywords []string, name func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if MatchesKeyword(name(item), keywords) {
			out = append(out, item)
		}
	}
	return out
}

// MatchesKeyword reports whether s contains any keyword, ignoring case
func MatchesKeyword(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
