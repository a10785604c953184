package studylink

import "context"

// Backend is the REST surface the directory synchronizes against.
// Implementations normalize backend field names into Listing and classify
// failures as ErrUnavailable, ErrTimeout, ErrMalformedResponse or *StatusError.
type Backend interface {
	// ListGroups returns the groups visible to q.UserID.
	ListGroups(ctx context.Context, q ListQuery) ([]Listing, error)

	// CreateGroup creates a group owned by owner. The returned listing is nil
	// when the backend acknowledges the create without echoing the record.
	CreateGroup(ctx context.Context, owner UserID, d Draft) (*Listing, error)

	// JoinGroup adds user to the group.
	JoinGroup(ctx context.Context, groupID int64, user UserID) error

	// LeaveGroup removes user from the group.
	LeaveGroup(ctx context.Context, groupID int64, user UserID) error

	// DeleteGroup deletes the group on behalf of user.
	DeleteGroup(ctx context.Context, groupID int64, user UserID) error
}
