package studylink

import "fmt"

// UserID identifies a student. NoUser means no active session.
type UserID int64

// NoUser is the zero UserID.
const NoUser UserID = 0

// DefaultUserID is used when no valid user id has been persisted.
const DefaultUserID UserID = 5

func (u UserID) String() string { return fmt.Sprintf("%d", int64(u)) }

// StudyGroup is one group record as known to the client.
type StudyGroup struct {
	ID          int64
	Name        string
	Subject     string // course code, e.g. "CMPUT204"
	Description string
	Members     int
	MaxMembers  int
	MeetingDay  string
	MeetingTime string
	Building    string
	Floor       string
	NextMeeting string
	OrganizerID UserID
	IsOwner     bool
}

// IsFull reports whether the group has no free seats. A group without a
// known limit (MaxMembers <= 0) is never full.
func (g StudyGroup) IsFull() bool {
	return g.MaxMembers > 0 && g.Members >= g.MaxMembers
}

// Location formats the meeting place as "<building>, <floor>".
func (g StudyGroup) Location() string {
	switch {
	case g.Building == "":
		return g.Floor
	case g.Floor == "":
		return g.Building
	}
	return g.Building + ", " + g.Floor
}

// Listing is a normalized backend record for one group.
type Listing struct {
	Group StudyGroup
	// HasJoined is nil when the backend does not report membership.
	HasJoined *bool
}

// Draft is the user-entered data for a group that does not exist yet.
type Draft struct {
	Name        string `json:"name" validate:"required,max=100"`
	Subject     string `json:"course_code" validate:"required,max=20"`
	Description string `json:"description" validate:"max=500"`
	MaxMembers  int    `json:"max_members" validate:"gte=2,lte=50"`
	MeetingDay  string `json:"meeting_day" validate:"required"`
	MeetingTime string `json:"meeting_time" validate:"required"`
	Building    string `json:"building" validate:"required"`
	Floor       string `json:"room" validate:"required"`
}

// NextMeeting is the display string sent alongside a create request.
func (d Draft) NextMeeting() string {
	return d.MeetingDay + ", " + d.MeetingTime
}

// Preview returns the group a draft would become, with no members yet.
func (d Draft) Preview() StudyGroup {
	limit := d.MaxMembers
	if limit <= 0 {
		limit = 10
	}
	return StudyGroup{
		Name:        d.Name,
		Subject:     d.Subject,
		Description: d.Description,
		MaxMembers:  limit,
		MeetingDay:  d.MeetingDay,
		MeetingTime: d.MeetingTime,
		Building:    d.Building,
		Floor:       d.Floor,
		NextMeeting: d.NextMeeting(),
	}
}

// ListQuery selects which groups the backend returns.
type ListQuery struct {
	UserID     UserID
	IsSearch   bool
	CourseCode string
}

// Action is what the UI offers for a group.
type Action int

const (
	ActionJoin Action = iota
	ActionLeave
	ActionFull
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionJoin:
		return "Join Group"
	case ActionLeave:
		return "Leave Group"
	case ActionFull:
		return "Group Full"
	case ActionDelete:
		return "Delete Group"
	default:
		return "unknown"
	}
}

// ActionFor decides the action for a group given whether the user has joined it.
// Joined membership wins over fullness so a member of a full group can still leave.
func ActionFor(g StudyGroup, joined bool) Action {
	if joined {
		return ActionLeave
	}
	if g.IsFull() {
		return ActionFull
	}
	return ActionJoin
}
