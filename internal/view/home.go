package view

import (
	"fmt"
	"io"

	"github.com/samber/lo"

	"studylink/internal/studylink"
)

// RecentCount is how many joined groups the home page lists.
const RecentCount = 3

// Stats summarizes the current user's groups.
type Stats struct {
	Joined  int
	Owned   int
	Members int // summed over joined groups
}

// ComputeStats derives the home page numbers from snap.
func ComputeStats(snap studylink.Snapshot) Stats {
	joined := lo.Filter(snap.Groups, func(g studylink.StudyGroup, _ int) bool {
		return snap.IsJoined(g.ID)
	})
	return Stats{
		Joined: len(joined),
		Owned: lo.CountBy(snap.Groups, func(g studylink.StudyGroup) bool {
			return g.IsOwner
		}),
		Members: lo.SumBy(joined, func(g studylink.StudyGroup) int {
			return g.Members
		}),
	}
}

// RenderHome writes the home page: welcome header, stats, recent groups and
// quick actions.
func RenderHome(w io.Writer, snap studylink.Snapshot, width int) {
	fmt.Fprintln(w, "Welcome to StudyLink")
	fmt.Fprintln(w, "Connect with students and join study groups to enhance your learning experience.")
	fmt.Fprintf(w, "Signed in as user %d\n", snap.User)
	if snap.Stale {
		fmt.Fprintln(w, "Some changes are not yet confirmed by the server.")
	}
	fmt.Fprintln(w)

	stats := ComputeStats(snap)
	fmt.Fprintf(w, "  %-15s %d\n", "Joined groups", stats.Joined)
	fmt.Fprintf(w, "  %-15s %d\n", "Owned groups", stats.Owned)
	fmt.Fprintf(w, "  %-15s %d\n", "Total members", stats.Members)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Recent Study Groups")
	fmt.Fprintln(w, rule(width))
	recent := studylink.Recent(snap, RecentCount)
	if len(recent) == 0 {
		fmt.Fprintln(w, "You have not joined any study groups yet.")
	}
	for i, g := range recent {
		if i > 0 {
			fmt.Fprintln(w)
		}
		SnapshotCard(snap, g, width).Render(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Quick Actions")
	fmt.Fprintln(w, "  studylink create        Create a study group")
	fmt.Fprintln(w, "  studylink search        Search groups to join")
}
