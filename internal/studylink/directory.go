package studylink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Membership selects where the joined set comes from.
type Membership string

const (
	// MembershipServer trusts the backend's per-record has_joined flag.
	MembershipServer Membership = "server"
	// MembershipClient tracks joins locally and persists them in LocalStorage.
	MembershipClient Membership = "client"
)

// ParseMembership validates a configured membership source. Empty means server.
func ParseMembership(s string) (Membership, error) {
	switch Membership(s) {
	case "", MembershipServer:
		return MembershipServer, nil
	case MembershipClient:
		return MembershipClient, nil
	default:
		return "", fmt.Errorf("unknown membership source: %q", s)
	}
}

// DefaultTimeout bounds every backend call when DirectoryOptions.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// SearchAllCourses is the course code sent when listing every group.
const SearchAllCourses = "SEARCH_ALL"

// DirectoryOptions configures a Directory.
type DirectoryOptions struct {
	Membership Membership
	// Storage persists the joined set; required for MembershipClient.
	Storage LocalStorage
	Timeout time.Duration
	Logger  Logger
	Clock   Clock
}

// Snapshot is a consistent copy of the directory state.
type Snapshot struct {
	User     UserID
	Groups   []StudyGroup
	Joined   []int64
	SyncedAt time.Time
	// Stale is true when local changes have not yet been confirmed by a refresh.
	Stale bool
}

// IsJoined reports whether id is in the snapshot's joined set.
func (s Snapshot) IsJoined(id int64) bool {
	return slices.Contains(s.Joined, id)
}

// Directory is the client-side source of truth for the groups visible to the
// current user and the subset that user has joined.
//
// A successful refresh replaces the state wholesale. Mutations patch the state
// locally once the backend accepts them and then refresh; the refreshed state
// wins, and the patch only survives when that refresh fails.
// This implementation is safe for concurrent use.
type Directory struct {
	backend    Backend
	users      UserSource
	membership Membership
	storage    LocalStorage
	timeout    time.Duration
	logger     Logger
	clock      Clock
	locks      *groupLocks

	// joinedMu serializes reading, updating and persisting the locally
	// tracked joined set. Taken before mu, never while holding it.
	joinedMu sync.Mutex

	mu         sync.RWMutex
	user       UserID
	groups     []StudyGroup
	joined     map[int64]struct{}
	pending    map[int64]Action
	syncedAt   time.Time
	stale      bool
	seq        uint64 // last issued refresh sequence number
	appliedSeq uint64 // refreshes at or below this number are outdated
}

// NewDirectory creates an empty Directory. Call Refresh to populate it.
func NewDirectory(backend Backend, users UserSource, opts DirectoryOptions) (*Directory, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user source is required")
	}
	membership, err := ParseMembership(string(opts.Membership))
	if err != nil {
		return nil, err
	}
	if membership == MembershipClient && opts.Storage == nil {
		return nil, fmt.Errorf("client membership requires local storage")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}

	return &Directory{
		backend:    backend,
		users:      users,
		membership: membership,
		storage:    opts.Storage,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		clock:      opts.Clock,
		locks:      newGroupLocks(),
		user:       users.CurrentUser(),
		joined:     make(map[int64]struct{}),
		pending:    make(map[int64]Action),
	}, nil
}

// Watch re-derives the directory whenever identity changes user.
// The returned function stops watching.
func (d *Directory) Watch(identity *Identity) (stop func()) {
	return identity.Subscribe(func(ctx context.Context, user UserID) {
		d.Reset(user)
		if err := d.Refresh(ctx); err != nil {
			d.logger.Warn("refreshing groups after user change", "user", user, "error", err)
		}
	})
}

// Reset drops all state and binds the directory to user.
func (d *Directory) Reset(user UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked(user)
}

func (d *Directory) resetLocked(user UserID) {
	d.user = user
	d.groups = nil
	d.joined = make(map[int64]struct{})
	d.pending = make(map[int64]Action)
	d.syncedAt = time.Time{}
	d.stale = false
	d.appliedSeq = d.seq
}

// Refresh replaces the directory with the backend's view for the current user.
// On failure the previous state is kept and the classified error is returned.
// With no active user it clears the state and returns nil.
func (d *Directory) Refresh(ctx context.Context) error {
	user := d.users.CurrentUser()

	d.mu.Lock()
	if user == NoUser || user != d.user {
		d.resetLocked(user)
	}
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	if user == NoUser {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	listings, err := d.backend.ListGroups(callCtx, ListQuery{
		UserID:     user,
		IsSearch:   true,
		CourseCode: SearchAllCourses,
	})
	if err != nil {
		err = classify(err)
		d.logger.Warn("refreshing groups failed", "user", user, "error", err)
		return fmt.Errorf("refreshing groups: %w", err)
	}

	var stored map[int64]struct{}
	if d.membership == MembershipClient {
		d.joinedMu.Lock()
		defer d.joinedMu.Unlock()
		stored, err = d.loadJoined(user)
		if err != nil {
			d.logger.Warn("reading locally tracked memberships", "user", user, "error", err)
			stored = d.joinedCopy()
		}
	}

	d.mu.Lock()
	if d.user != user || seq <= d.appliedSeq {
		d.mu.Unlock()
		d.logger.Debug("discarding outdated refresh", "user", user, "seq", seq)
		return nil
	}

	groups := make([]StudyGroup, 0, len(listings))
	joined := make(map[int64]struct{})
	seen := make(map[int64]struct{}, len(listings))
	for _, l := range listings {
		g := l.Group
		if _, dup := seen[g.ID]; dup {
			d.logger.Warn("backend returned duplicate group", "group_id", g.ID)
			continue
		}
		seen[g.ID] = struct{}{}
		g.IsOwner = g.OrganizerID != NoUser && g.OrganizerID == user
		groups = append(groups, g)

		member := g.IsOwner
		switch d.membership {
		case MembershipServer:
			member = member || (l.HasJoined != nil && *l.HasJoined)
		case MembershipClient:
			_, tracked := stored[g.ID]
			member = member || tracked
		}
		if member {
			joined[g.ID] = struct{}{}
		}
	}

	d.groups = groups
	d.joined = joined
	d.pending = make(map[int64]Action)
	d.syncedAt = d.clock.Now()
	d.stale = false
	d.appliedSeq = seq
	d.mu.Unlock()

	d.logger.Debug("groups refreshed", "user", user, "groups", len(groups), "joined", len(joined))

	if d.membership == MembershipClient {
		// joined is now d.joined; patches cannot touch it while joinedMu is held.
		d.saveJoined(user, joined)
	}
	return nil
}

// AddGroup creates a group owned by the current user. The draft is not
// validated here; that is the job of whatever collected it.
// The returned group is nil when the new group could not be identified.
func (d *Directory) AddGroup(ctx context.Context, draft Draft) (*StudyGroup, error) {
	user := d.users.CurrentUser()
	if user == NoUser {
		return nil, fmt.Errorf("creating group: no active user: %w", ErrInvalidUser)
	}

	// The groups listed before the create, used to find the new one when the
	// backend does not echo it. nil when they could not be listed.
	var before map[int64]struct{}
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("listing groups before create", "user", user, "error", err)
	} else {
		before = lo.SliceToMap(d.Groups(), func(g StudyGroup) (int64, struct{}) { return g.ID, struct{}{} })
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	listing, err := d.backend.CreateGroup(callCtx, user, draft)
	cancel()
	if err != nil {
		err = classify(err)
		d.logger.Warn("creating group failed", "name", draft.Name, "error", err)
		return nil, fmt.Errorf("creating group: %w", err)
	}

	var createdID int64
	if listing != nil && listing.Group.ID != 0 {
		g := listing.Group
		createdID = g.ID
		if g.OrganizerID == NoUser {
			g.OrganizerID = user
		}
		g.IsOwner = true
		if g.NextMeeting == "" {
			g.NextMeeting = draft.NextMeeting()
		}
		d.patch(user, func() {
			if i := d.indexLocked(g.ID); i >= 0 {
				d.groups[i] = g
			} else {
				d.groups = append(d.groups, g)
			}
			d.joined[g.ID] = struct{}{}
		})
	}
	d.logger.Info("group created", "group_id", createdID, "name", draft.Name, "user", user)

	d.resync(ctx, user)

	if createdID == 0 && before != nil {
		// The backend did not echo the record; take the newest owned group
		// with the drafted name that was not listed before.
		for _, g := range d.Groups() {
			if _, existed := before[g.ID]; !existed && g.IsOwner && g.Name == draft.Name && g.ID > createdID {
				createdID = g.ID
			}
		}
	}
	if createdID == 0 {
		return nil, nil
	}
	if g, ok := d.Group(createdID); ok {
		return &g, nil
	}
	return nil, nil
}

// JoinGroup adds the current user to group id. A join against a known full
// group is refused with ErrGroupFull before any request is made.
func (d *Directory) JoinGroup(ctx context.Context, id int64) error {
	unlock := d.locks.lock(id)
	defer unlock()

	user := d.users.CurrentUser()
	if user == NoUser {
		return fmt.Errorf("joining group %d: no active user: %w", id, ErrInvalidUser)
	}
	if g, ok := d.Group(id); ok && g.IsFull() && !d.IsJoined(id) {
		return fmt.Errorf("joining group %d: %w", id, ErrGroupFull)
	}

	err := d.call(ctx, user, id, ActionJoin, func(ctx context.Context) error {
		return d.backend.JoinGroup(ctx, id, user)
	})
	if err != nil {
		return fmt.Errorf("joining group %d: %w", id, err)
	}

	d.patch(user, func() {
		d.joined[id] = struct{}{}
		if i := d.indexLocked(id); i >= 0 {
			g := &d.groups[i]
			g.Members++
			if g.MaxMembers > 0 {
				g.Members = min(g.Members, g.MaxMembers)
			}
		}
	})
	d.logger.Info("joined group", "group_id", id, "user", user)

	d.resync(ctx, user)
	return nil
}

// LeaveGroup removes the current user from group id.
func (d *Directory) LeaveGroup(ctx context.Context, id int64) error {
	unlock := d.locks.lock(id)
	defer unlock()

	user := d.users.CurrentUser()
	if user == NoUser {
		return fmt.Errorf("leaving group %d: no active user: %w", id, ErrInvalidUser)
	}

	err := d.call(ctx, user, id, ActionLeave, func(ctx context.Context) error {
		return d.backend.LeaveGroup(ctx, id, user)
	})
	if err != nil {
		return fmt.Errorf("leaving group %d: %w", id, err)
	}

	d.patch(user, func() {
		delete(d.joined, id)
		if i := d.indexLocked(id); i >= 0 {
			g := &d.groups[i]
			g.Members = max(g.Members-1, 0)
		}
	})
	d.logger.Info("left group", "group_id", id, "user", user)

	d.resync(ctx, user)
	return nil
}

// DeleteGroup deletes group id and drops it from the list and the joined set.
func (d *Directory) DeleteGroup(ctx context.Context, id int64) error {
	unlock := d.locks.lock(id)
	defer unlock()

	user := d.users.CurrentUser()
	if user == NoUser {
		return fmt.Errorf("deleting group %d: no active user: %w", id, ErrInvalidUser)
	}

	err := d.call(ctx, user, id, ActionDelete, func(ctx context.Context) error {
		return d.backend.DeleteGroup(ctx, id, user)
	})
	if err != nil {
		return fmt.Errorf("deleting group %d: %w", id, err)
	}

	d.patch(user, func() {
		delete(d.joined, id)
		if i := d.indexLocked(id); i >= 0 {
			d.groups = slices.Delete(d.groups, i, i+1)
		}
	})
	d.logger.Info("deleted group", "group_id", id, "user", user)

	d.resync(ctx, user)
	return nil
}

// IsJoined reports whether the current user belongs to group id.
func (d *Directory) IsJoined(id int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.joined[id]
	return ok
}

// Groups returns a copy of the group list in backend order.
func (d *Directory) Groups() []StudyGroup {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.groups)
}

// Group returns the group with the given id.
func (d *Directory) Group(id int64) (StudyGroup, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i := d.indexLocked(id); i >= 0 {
		return d.groups[i], true
	}
	return StudyGroup{}, false
}

// JoinedGroups returns the joined groups in backend order.
func (d *Directory) JoinedGroups() []StudyGroup {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Filter(d.groups, func(g StudyGroup, _ int) bool {
		_, ok := d.joined[g.ID]
		return ok
	})
}

// Pending returns the mutation currently in flight for group id, if any.
func (d *Directory) Pending(id int64) (Action, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.pending[id]
	return a, ok
}

// Snapshot returns a consistent copy of the directory state.
func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	joined := lo.Keys(d.joined)
	slices.Sort(joined)
	return Snapshot{
		User:     d.user,
		Groups:   slices.Clone(d.groups),
		Joined:   joined,
		SyncedAt: d.syncedAt,
		Stale:    d.stale,
	}
}

// call runs fn under the directory timeout while marking id as in flight.
func (d *Directory) call(ctx context.Context, user UserID, id int64, action Action, fn func(context.Context) error) error {
	d.mu.Lock()
	if d.user == user {
		d.pending[id] = action
	}
	d.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	err := fn(callCtx)
	cancel()

	d.mu.Lock()
	if d.user == user {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if err != nil {
		err = classify(err)
		d.logger.Warn("group mutation failed", "action", action.String(), "group_id", id, "user", user, "error", err)
		return err
	}
	return nil
}

// patch applies fn to the state of user and marks it unconfirmed. Refreshes
// issued before the patch are outdated once it lands.
func (d *Directory) patch(user UserID, fn func()) {
	if d.membership == MembershipClient {
		d.joinedMu.Lock()
		defer d.joinedMu.Unlock()
	}
	d.mu.Lock()
	if d.user != user {
		d.mu.Unlock()
		return
	}
	fn()
	d.stale = true
	d.appliedSeq = d.seq
	joined := make(map[int64]struct{}, len(d.joined))
	for id := range d.joined {
		joined[id] = struct{}{}
	}
	d.mu.Unlock()

	if d.membership == MembershipClient {
		d.saveJoined(user, joined)
	}
}

// resync refreshes after a mutation. A failure keeps the patched state.
func (d *Directory) resync(ctx context.Context, user UserID) {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("keeping local changes until the next refresh", "user", user, "error", err)
	}
}

func (d *Directory) indexLocked(id int64) int {
	return slices.IndexFunc(d.groups, func(g StudyGroup) bool { return g.ID == id })
}

func (d *Directory) joinedCopy() map[int64]struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int64]struct{}, len(d.joined))
	for id := range d.joined {
		out[id] = struct{}{}
	}
	return out
}

// JoinedKey is the local storage key for a user's locally tracked memberships.
func JoinedKey(user UserID) string {
	return "joined_groups." + user.String()
}

func (d *Directory) loadJoined(user UserID) (map[int64]struct{}, error) {
	raw, ok, err := d.storage.GetItem(JoinedKey(user))
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{})
	if !ok || raw == "" {
		return out, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decoding joined groups: %w", err)
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (d *Directory) saveJoined(user UserID, joined map[int64]struct{}) {
	ids := lo.Keys(joined)
	slices.Sort(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		d.logger.Error("encoding joined groups", "user", user, "error", err)
		return
	}
	if err := d.storage.SetItem(JoinedKey(user), string(data)); err != nil {
		d.logger.Warn("persisting joined groups", "user", user, "error", err)
	}
}

// classify maps bare context deadline errors onto ErrTimeout.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
