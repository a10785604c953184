package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"studylink/internal/studylink"
)

// MemoryBackend is an in-memory implementation of the Backend interface.
// It enforces the same membership rules as the REST API, which makes it useful
// for testing and for trying the CLI without a server.
// This implementation is safe for concurrent use.
type MemoryBackend struct {
	mu               sync.RWMutex
	nextID           int64
	groups           map[int64]*memoryGroup
	reportMembership bool
	calls            map[string]int
}

type memoryGroup struct {
	group   studylink.StudyGroup
	members map[studylink.UserID]struct{}
}

// NewMemoryBackend creates an empty backend. When reportMembership is true,
// listings carry the has_joined flag for the requesting user.
func NewMemoryBackend(reportMembership bool) *MemoryBackend {
	return &MemoryBackend{
		nextID:           1,
		groups:           make(map[int64]*memoryGroup),
		reportMembership: reportMembership,
		calls:            make(map[string]int),
	}
}

// Seed inserts g with the given members and returns its assigned id.
// g.Members is ignored; the count follows the member list.
func (m *MemoryBackend) Seed(g studylink.StudyGroup, members ...studylink.UserID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	g.ID = m.nextID
	m.nextID++
	mg := &memoryGroup{group: g, members: make(map[studylink.UserID]struct{})}
	for _, u := range members {
		mg.members[u] = struct{}{}
	}
	mg.group.Members = len(mg.members)
	m.groups[g.ID] = mg
	return g.ID
}

// Calls returns how many times the named operation was invoked.
func (m *MemoryBackend) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// ListGroups returns every group in id order.
func (m *MemoryBackend) ListGroups(ctx context.Context, q studylink.ListQuery) ([]studylink.Listing, error) {
	if err := contextError("list groups", ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["list"]++

	ids := lo.Keys(m.groups)
	slices.Sort(ids)

	out := make([]studylink.Listing, 0, len(ids))
	for _, id := range ids {
		mg := m.groups[id]
		if q.CourseCode != "" && q.CourseCode != studylink.SearchAllCourses &&
			!strings.EqualFold(mg.group.Subject, q.CourseCode) {
			continue
		}
		l := studylink.Listing{Group: mg.group}
		if m.reportMembership {
			_, joined := mg.members[q.UserID]
			l.HasJoined = &joined
		}
		out = append(out, l)
	}
	return out, nil
}

// CreateGroup stores a new group with owner as its first member.
func (m *MemoryBackend) CreateGroup(ctx context.Context, owner studylink.UserID, d studylink.Draft) (*studylink.Listing, error) {
	if err := contextError("create group", ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Subject) == "" {
		return nil, reject("create group", http.StatusUnprocessableEntity, "name and course_code are required")
	}
	if d.MaxMembers <= 0 {
		return nil, reject("create group", http.StatusUnprocessableEntity, "max_members must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++

	g := studylink.StudyGroup{
		ID:          m.nextID,
		Name:        d.Name,
		Subject:     d.Subject,
		Description: d.Description,
		Members:     1,
		MaxMembers:  d.MaxMembers,
		MeetingDay:  d.MeetingDay,
		MeetingTime: d.MeetingTime,
		Building:    d.Building,
		Floor:       d.Floor,
		NextMeeting: d.NextMeeting(),
		OrganizerID: owner,
	}
	m.nextID++
	m.groups[g.ID] = &memoryGroup{
		group:   g,
		members: map[studylink.UserID]struct{}{owner: {}},
	}

	joined := true
	return &studylink.Listing{Group: g, HasJoined: &joined}, nil
}

// JoinGroup adds user to the group unless it is full or user is already a member.
func (m *MemoryBackend) JoinGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	if err := contextError("join group", ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["join"]++

	mg, ok := m.groups[groupID]
	if !ok {
		return reject("join group", http.StatusNotFound, "group not found")
	}
	if _, member := mg.members[user]; member {
		return reject("join group", http.StatusConflict, "already joined")
	}
	if mg.group.IsFull() {
		return reject("join group", http.StatusConflict, "group is full")
	}
	mg.members[user] = struct{}{}
	mg.group.Members = len(mg.members)
	return nil
}

// LeaveGroup removes user from the group. Owners must delete instead.
func (m *MemoryBackend) LeaveGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	if err := contextError("leave group", ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["leave"]++

	mg, ok := m.groups[groupID]
	if !ok {
		return reject("leave group", http.StatusNotFound, "group not found")
	}
	if _, member := mg.members[user]; !member {
		return reject("leave group", http.StatusConflict, "not a member")
	}
	if mg.group.OrganizerID == user {
		return reject("leave group", http.StatusConflict, "owner cannot leave; delete the group instead")
	}
	delete(mg.members, user)
	mg.group.Members = len(mg.members)
	return nil
}

// DeleteGroup removes the group. Only its owner may delete it.
func (m *MemoryBackend) DeleteGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	if err := contextError("delete group", ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["delete"]++

	mg, ok := m.groups[groupID]
	if !ok {
		return reject("delete group", http.StatusNotFound, "group not found")
	}
	if mg.group.OrganizerID != user {
		return reject("delete group", http.StatusForbidden, "only the owner can delete a group")
	}
	delete(m.groups, groupID)
	return nil
}

// SeedDemo fills the backend with a few sample groups.
func (m *MemoryBackend) SeedDemo() {
	m.Seed(studylink.StudyGroup{
		Name: "Calculus Study", Subject: "MATH146", Description: "Weekly problem sets and exam prep",
		MaxMembers: 8, MeetingDay: "Monday", MeetingTime: "18:00", Building: "CAB", Floor: "2",
		NextMeeting: "Monday, 18:00", OrganizerID: 1,
	}, 1, 2)
	m.Seed(studylink.StudyGroup{
		Name: "Chem Review", Subject: "CHEM101", Description: "Lab report walkthroughs",
		MaxMembers: 4, MeetingDay: "Wednesday", MeetingTime: "16:30", Building: "CCIS", Floor: "1",
		NextMeeting: "Wednesday, 16:30", OrganizerID: 2,
	}, 2, 3, 4, 6)
	m.Seed(studylink.StudyGroup{
		Name: "Algorithms Club", Subject: "CMPUT204", Description: "Divide and conquer, graphs, DP",
		MaxMembers: 10, MeetingDay: "Friday", MeetingTime: "14:00", Building: "Athabasca Hall", Floor: "3",
		NextMeeting: "Friday, 14:00", OrganizerID: 3,
	}, 3)
}

func reject(op string, status int, detail string) error {
	return &studylink.StatusError{Op: op, StatusCode: status, Detail: detail}
}

// contextError reports a done context the way the HTTP backend would.
func contextError(op string, ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, studylink.ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, studylink.ErrUnavailable, err)
	}
}

// Compile-time check that MemoryBackend implements studylink.Backend
var _ studylink.Backend = (*MemoryBackend)(nil)
