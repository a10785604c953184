package view

import (
	"fmt"
	"io"
	"strings"

	"studylink/internal/studylink"
)

const (
	cardIndent = "    "
	barCells   = 20
)

// Card renders one study group.
type Card struct {
	Group  studylink.StudyGroup
	Joined bool
	// Pending is the mutation in flight for the group, valid when IsPending.
	Pending   studylink.Action
	IsPending bool
	Width     int
}

// NewCard builds a card from the live directory state, including any
// mutation still in flight for g.
func NewCard(d *studylink.Directory, g studylink.StudyGroup, width int) Card {
	pending, ok := d.Pending(g.ID)
	return Card{
		Group:     g,
		Joined:    d.IsJoined(g.ID),
		Pending:   pending,
		IsPending: ok,
		Width:     width,
	}
}

// SnapshotCard builds a card from a snapshot.
func SnapshotCard(snap studylink.Snapshot, g studylink.StudyGroup, width int) Card {
	return Card{Group: g, Joined: snap.IsJoined(g.ID), Width: width}
}

// Action is what the card offers for its group.
func (c Card) Action() studylink.Action {
	return studylink.ActionFor(c.Group, c.Joined)
}

// Render writes the card to w.
func (c Card) Render(w io.Writer) {
	width := c.Width
	if width <= 0 {
		width = defaultWidth
	}
	inner := width - len(cardIndent)
	g := c.Group

	title := g.Name
	if g.ID != 0 {
		title = fmt.Sprintf("#%d  %s", g.ID, g.Name)
	}
	if g.IsOwner {
		title += "  (owner)"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, cardIndent+g.Subject)
	for _, line := range wrap(g.Description, inner) {
		fmt.Fprintln(w, cardIndent+line)
	}
	fmt.Fprintln(w, cardIndent+rule(inner))

	if g.MaxMembers > 0 {
		infoRow(w, "Members", fmt.Sprintf("%d / %d members", g.Members, g.MaxMembers), MemberBar(g.Members, g.MaxMembers, barCells))
	} else {
		infoRow(w, "Members", plural(g.Members, "member"), "")
	}
	infoRow(w, "Day", g.MeetingDay, "")
	infoRow(w, "Time", g.MeetingTime, "")
	infoRow(w, "Where", g.Location(), "")
	if g.NextMeeting != "" {
		infoRow(w, "Next", g.NextMeeting, "")
	}
	fmt.Fprintln(w, cardIndent+c.buttons())
}

func (c Card) buttons() string {
	if c.IsPending {
		return "[" + pendingLabel(c.Pending) + "]"
	}
	buttons := "[" + c.Action().String() + "]"
	if c.Group.IsOwner {
		buttons += "  [" + studylink.ActionDelete.String() + "]"
	}
	return buttons
}

func pendingLabel(a studylink.Action) string {
	switch a {
	case studylink.ActionJoin:
		return "Joining..."
	case studylink.ActionLeave:
		return "Leaving..."
	case studylink.ActionDelete:
		return "Deleting..."
	default:
		return "Working..."
	}
}

// infoRow writes a labelled detail line with optional right-hand content.
func infoRow(w io.Writer, label, text, right string) {
	line := fmt.Sprintf("%s%-8s %s", cardIndent, label+":", text)
	if right != "" {
		line += "  " + right
	}
	fmt.Fprintln(w, line)
}

// MemberBar draws how full a group is, e.g. "[#####---------------]".
func MemberBar(members, maxMembers, cells int) string {
	filled := 0
	if maxMembers > 0 {
		filled = min(max(members*cells/maxMembers, 0), cells)
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", cells-filled) + "]"
}
