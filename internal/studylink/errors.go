package studylink

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrTimeout means a backend call exceeded its deadline.
	ErrTimeout = errors.New("backend request timed out")

	// ErrRejected means the backend answered with a non-success status.
	ErrRejected = errors.New("request rejected")

	// ErrMalformedResponse means the backend answered with a body we could not decode.
	ErrMalformedResponse = errors.New("malformed backend response")

	// ErrGroupFull is returned without contacting the backend when a join targets a full group.
	ErrGroupFull = errors.New("group is full")

	// ErrInvalidUser is returned for non-positive user ids.
	ErrInvalidUser = errors.New("user id must be positive")
)

// StatusError carries a non-success backend response.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend responded with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend responded with status %d: %s", e.Op, e.StatusCode, e.Detail)
}

// Is lets errors.Is(err, ErrRejected) match any StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrRejected
}

// IsRetryable reports whether a failed operation may succeed if the user tries again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
