package studylink

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// UserIDKey is the local storage key holding the current user id.
const UserIDKey = "user_id"

// UserSource resolves the user whose groups the directory mirrors.
type UserSource interface {
	CurrentUser() UserID
}

// Identity owns the current user id. It is read once from local storage at
// construction and written back on every explicit change.
// This implementation is safe for concurrent use.
type Identity struct {
	storage LocalStorage
	logger  Logger
	// setMu serializes SetCurrentUser so storage, memory and subscribers
	// see changes in the same order.
	setMu    sync.Mutex
	mu       sync.RWMutex
	current  UserID
	nextSub  int
	subs     map[int]func(context.Context, UserID)
	subOrder []int
}

// NewIdentity loads the persisted user id, falling back to fallback when the
// value is missing, unreadable or not a positive integer.
func NewIdentity(storage LocalStorage, fallback UserID, logger Logger) *Identity {
	if logger == nil {
		logger = NewNopLogger()
	}
	if fallback <= NoUser {
		fallback = DefaultUserID
	}

	id := &Identity{
		storage: storage,
		logger:  logger,
		current: fallback,
		subs:    make(map[int]func(context.Context, UserID)),
	}

	raw, ok, err := storage.GetItem(UserIDKey)
	switch {
	case err != nil:
		logger.Warn("reading persisted user id", "error", err, "fallback", fallback)
	case !ok:
		logger.Debug("no persisted user id", "fallback", fallback)
	default:
		parsed, perr := ParseUserID(raw)
		if perr != nil {
			logger.Debug("ignoring malformed persisted user id", "value", raw, "fallback", fallback)
		} else {
			id.current = parsed
		}
	}
	return id
}

// ParseUserID parses a decimal, positive user id.
func ParseUserID(raw string) (UserID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return NoUser, fmt.Errorf("parsing user id %q: %w", raw, err)
	}
	if n <= 0 {
		return NoUser, fmt.Errorf("parsing user id %q: %w", raw, ErrInvalidUser)
	}
	return UserID(n), nil
}

// CurrentUser returns the active user id. It never fails.
func (i *Identity) CurrentUser() UserID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

// SetCurrentUser persists id and makes it the active user. Subscribers are
// notified synchronously, in registration order, when the value changes.
// If persisting fails the active user is left unchanged.
func (i *Identity) SetCurrentUser(ctx context.Context, id UserID) error {
	if id <= NoUser {
		return ErrInvalidUser
	}

	i.setMu.Lock()
	defer i.setMu.Unlock()

	if err := i.storage.SetItem(UserIDKey, id.String()); err != nil {
		return fmt.Errorf("persisting user id: %w", err)
	}

	i.mu.Lock()
	previous := i.current
	i.current = id
	subs := make([]func(context.Context, UserID), 0, len(i.subOrder))
	for _, key := range i.subOrder {
		subs = append(subs, i.subs[key])
	}
	i.mu.Unlock()

	if previous == id {
		return nil
	}
	i.logger.Info("current user changed", "from", previous, "to", id)
	for _, fn := range subs {
		fn(ctx, id)
	}
	return nil
}

// Subscribe registers fn to run after every change of the current user.
// The returned function removes the subscription.
func (i *Identity) Subscribe(fn func(context.Context, UserID)) (unsubscribe func()) {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := i.nextSub
	i.nextSub++
	i.subs[key] = fn
	i.subOrder = append(i.subOrder, key)

	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.subs, key)
		for n, k := range i.subOrder {
			if k == key {
				i.subOrder = append(i.subOrder[:n], i.subOrder[n+1:]...)
				break
			}
		}
	}
}
