package studylink

import (
	"strings"

	"github.com/samber/lo"
)

// Matches reports whether query is contained, ignoring case, in the group's
// name, subject or description. An empty query matches everything; spaces in
// the query are significant.
func Matches(g StudyGroup, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(g.Name), q) ||
		strings.Contains(strings.ToLower(g.Subject), q) ||
		strings.Contains(strings.ToLower(g.Description), q)
}

// Filter returns the groups matching query, preserving order.
func Filter(groups []StudyGroup, query string) []StudyGroup {
	return lo.Filter(groups, func(g StudyGroup, _ int) bool {
		return Matches(g, query)
	})
}

// Search returns the groups in snap the user has not joined that match query.
func Search(snap Snapshot, query string) []StudyGroup {
	open := lo.Reject(snap.Groups, func(g StudyGroup, _ int) bool {
		return snap.IsJoined(g.ID)
	})
	return Filter(open, query)
}

// Recent returns the first n joined groups from snap in backend order.
func Recent(snap Snapshot, n int) []StudyGroup {
	joined := lo.Filter(snap.Groups, func(g StudyGroup, _ int) bool {
		return snap.IsJoined(g.ID)
	})
	if n >= 0 && len(joined) > n {
		joined = joined[:n]
	}
	return joined
}
