package view

import (
	"fmt"
	"io"

	"studylink/internal/studylink"
)

// RenderSearch writes the groups in snap the user has not joined that match
// query, and returns how many matched.
func RenderSearch(w io.Writer, snap studylink.Snapshot, query string, width int) int {
	results := studylink.Search(snap, query)

	fmt.Fprintln(w, "Search Study Groups")
	if query != "" {
		fmt.Fprintf(w, "Matching %q\n", query)
	}
	fmt.Fprintln(w)

	if len(results) == 0 {
		fmt.Fprintln(w, "No study groups found")
		fmt.Fprintln(w, "Try adjusting your search or create a new study group:")
		fmt.Fprintln(w, "  studylink create")
		return 0
	}

	fmt.Fprintf(w, "Found %s\n", plural(len(results), "study group"))
	fmt.Fprintln(w, rule(width))
	for i, g := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		SnapshotCard(snap, g, width).Render(w)
	}
	return len(results)
}
