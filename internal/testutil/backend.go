package testutil

import (
	"context"
	"sync"

	"studylink/internal/studylink"
)

// ScriptedBackend wraps a Backend and lets tests inject failures and hold
// list calls open. Safe for concurrent use.
type ScriptedBackend struct {
	studylink.Backend

	mu       sync.Mutex
	listErr  error
	failNext map[string]error
	gates    []chan struct{}
	started  chan struct{}
}

// NewScriptedBackend wraps inner.
func NewScriptedBackend(inner studylink.Backend) *ScriptedBackend {
	return &ScriptedBackend{
		Backend:  inner,
		failNext: make(map[string]error),
		started:  make(chan struct{}, 16),
	}
}

// FailList makes every ListGroups call return err. Pass nil to heal.
func (b *ScriptedBackend) FailList(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listErr = err
}

// FailNext makes the next call of op ("create", "join", "leave" or "delete")
// return err without reaching the wrapped backend.
func (b *ScriptedBackend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[op] = err
}

// HoldNextList blocks the next ListGroups call until release is called. The
// held call reads the wrapped backend after release, so it observes any
// changes made in the meantime. Started is signalled when the call arrives.
func (b *ScriptedBackend) HoldNextList() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates = append(b.gates, gate)
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started receives once per held ListGroups call as it begins waiting.
func (b *ScriptedBackend) Started() <-chan struct{} {
	return b.started
}

func (b *ScriptedBackend) ListGroups(ctx context.Context, q studylink.ListQuery) ([]studylink.Listing, error) {
	b.mu.Lock()
	err := b.listErr
	var gate chan struct{}
	if len(b.gates) > 0 {
		gate = b.gates[0]
		b.gates = b.gates[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		b.started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return b.Backend.ListGroups(ctx, q)
}

func (b *ScriptedBackend) CreateGroup(ctx context.Context, owner studylink.UserID, d studylink.Draft) (*studylink.Listing, error) {
	if err := b.takeFailure("create"); err != nil {
		return nil, err
	}
	return b.Backend.CreateGroup(ctx, owner, d)
}

func (b *ScriptedBackend) JoinGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	if err := b.takeFailure("join"); err != nil {
		return err
	}
	return b.Backend.JoinGroup(ctx, groupID, user)
}

func (b *ScriptedBackend) LeaveGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	if err := b.takeFailure("leave"); err != nil {
		return err
	}
	return b.Backend.LeaveGroup(ctx, groupID, user)
}

func (b *ScriptedBackend) DeleteGroup(ctx context.Context, groupID int64, user studylink.UserID) error {
	if err := b.takeFailure("delete"); err != nil {
		return err
	}
	return b.Backend.DeleteGroup(ctx, groupID, user)
}

func (b *ScriptedBackend) takeFailure(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.failNext[op]
	delete(b.failNext, op)
	return err
}

var _ studylink.Backend = (*ScriptedBackend)(nil)
