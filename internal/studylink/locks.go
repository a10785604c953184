package studylink

import "sync"

// groupLocks serializes mutations per group id. Entries are reference counted
// and dropped once no caller holds or waits on them.
type groupLocks struct {
	mu      sync.Mutex
	entries map[int64]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{entries: make(map[int64]*groupLock)}
}

// lock blocks until the caller owns id and returns the matching unlock.
func (l *groupLocks) lock(id int64) func() {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &groupLock{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

// size returns the number of live entries.
func (l *groupLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
