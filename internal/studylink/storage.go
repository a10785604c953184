package studylink

import (
	"database/sql"
	"time"
)

// LocalStorage is a persistent string key/value store for client state.
type LocalStorage interface {
	// GetItem returns the value for key. ok is false when the key is absent.
	GetItem(key string) (value string, ok bool, err error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(key string) error
}

// Operation records one mutating command run against the directory.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	UserID     UserID
	Status     string
	Detail     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// OperationLog persists the history of mutating commands.
type OperationLog interface {
	// StartOperation records a new operation and returns its id.
	StartOperation(name, parameters string, user UserID, startedAt time.Time) (int64, error)

	// FinishOperation stamps the outcome of an operation.
	FinishOperation(id int64, status, detail string, finishedAt time.Time) error

	// ListOperations returns up to limit operations, newest first.
	ListOperations(limit int) ([]*Operation, error)
}
