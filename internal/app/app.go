package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"studylink/internal/backend"
	"studylink/internal/config"
	"studylink/internal/database"
	"studylink/internal/studylink"
)

// ErrGroupNotFound is returned when a command names a group the backend does not list.
var ErrGroupNotFound = errors.New("group not found")

// StudyLinkApp is the application layer between the CLI and the Directory.
// It constructs all dependencies from config, exposes high-level operations,
// records mutating commands in the operation history, and manages the DB
// lifecycle on Close.
type StudyLinkApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	identity  *studylink.Identity
	directory *studylink.Directory
	logger    studylink.Logger
	clock     studylink.Clock
	op        *Operation
	stopWatch func()
	logFile   *os.File
}

// Options tweaks how NewStudyLinkApp builds the app.
type Options struct {
	// Verbose also prints debug and info records to stderr.
	Verbose bool
	Clock   studylink.Clock
}

// NewStudyLinkApp creates a fully wired StudyLinkApp from the given config.
// operation identifies the CLI command being run (e.g. "JoinGroup", "Home").
// The caller must call Close when done.
func NewStudyLinkApp(cfg *config.Config, operation string, opts Options) (*StudyLinkApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	membership, err := studylink.ParseMembership(cfg.Membership)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = studylink.RealClock{}
	}

	opID := opts.Clock.Now().UTC().Format("20060102T150405Z")
	stderrLevel := slog.LevelWarn
	if opts.Verbose {
		stderrLevel = slog.LevelDebug
	}
	slogger, logFile, err := newLogger(cfg.LogDir, opID, stderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Storage)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	be, err := backend.NewBackendFromConfig(cfg.Backend, membership == studylink.MembershipServer, logger)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating backend: %w", err)
	}

	identity := studylink.NewIdentity(db, studylink.UserID(cfg.DefaultUserID), logger)

	dir, err := studylink.NewDirectory(be, identity, studylink.DirectoryOptions{
		Membership: membership,
		Storage:    db,
		Timeout:    cfg.Backend.Timeout(),
		Logger:     logger,
		Clock:      opts.Clock,
	})
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	logger.Debug("app ready",
		"operation", operation,
		"backend", cfg.Backend.Type,
		"membership", string(membership),
		"user", identity.CurrentUser(),
	)

	return &StudyLinkApp{
		cfg:       cfg,
		db:        db,
		identity:  identity,
		directory: dir,
		logger:    logger,
		clock:     opts.Clock,
		op:        NewOperation(operation, ""),
		stopWatch: dir.Watch(identity),
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *StudyLinkApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.Parameters = parameters
	id, err := a.db.StartOperation(a.op.Name, parameters, a.identity.CurrentUser(), a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// Config returns the config the app was built from.
func (a *StudyLinkApp) Config() *config.Config {
	return a.cfg
}

// Directory exposes the underlying directory for read-only rendering.
func (a *StudyLinkApp) Directory() *studylink.Directory {
	return a.directory
}

// CurrentUser returns the active user id.
func (a *StudyLinkApp) CurrentUser() studylink.UserID {
	return a.identity.CurrentUser()
}

// Load refreshes the directory from the backend and returns the result.
// On failure the returned snapshot is whatever the directory held before.
func (a *StudyLinkApp) Load(ctx context.Context) (studylink.Snapshot, error) {
	err := a.directory.Refresh(ctx)
	return a.directory.Snapshot(), err
}

// Search loads the directory and returns the groups the user has not joined
// that match query.
func (a *StudyLinkApp) Search(ctx context.Context, query string) ([]studylink.StudyGroup, error) {
	snap, err := a.Load(ctx)
	if err != nil {
		return nil, err
	}
	return studylink.Search(snap, query), nil
}

// CreateGroup creates a group owned by the current user. The draft must
// already be validated.
func (a *StudyLinkApp) CreateGroup(ctx context.Context, draft studylink.Draft) (*studylink.StudyGroup, error) {
	if err := a.persistOperation(Params("name", draft.Name, "course_code", draft.Subject)); err != nil {
		return nil, err
	}
	g, err := a.directory.AddGroup(ctx, draft)
	a.op.Fail(err)
	return g, err
}

// JoinGroup loads the directory and joins group id.
func (a *StudyLinkApp) JoinGroup(ctx context.Context, id int64) (studylink.StudyGroup, error) {
	return a.mutate(ctx, id, a.directory.JoinGroup)
}

// LeaveGroup loads the directory and leaves group id.
func (a *StudyLinkApp) LeaveGroup(ctx context.Context, id int64) (studylink.StudyGroup, error) {
	return a.mutate(ctx, id, a.directory.LeaveGroup)
}

// DeleteGroup loads the directory and deletes group id.
func (a *StudyLinkApp) DeleteGroup(ctx context.Context, id int64) (studylink.StudyGroup, error) {
	return a.mutate(ctx, id, a.directory.DeleteGroup)
}

// mutate runs fn against a freshly loaded directory. The returned group is
// the state after fn, or before it when fn removed the group.
func (a *StudyLinkApp) mutate(ctx context.Context, id int64, fn func(context.Context, int64) error) (studylink.StudyGroup, error) {
	if err := a.persistOperation(Params("group_id", id)); err != nil {
		return studylink.StudyGroup{}, err
	}

	err := a.directory.Refresh(ctx)
	if err == nil {
		before, ok := a.directory.Group(id)
		if !ok {
			err = fmt.Errorf("group %d: %w", id, ErrGroupNotFound)
		} else if err = fn(ctx, id); err == nil {
			if after, ok := a.directory.Group(id); ok {
				return after, nil
			}
			return before, nil
		}
	}
	a.op.Fail(err)
	return studylink.StudyGroup{}, err
}

// SetUser switches the active user. The directory follows the change.
func (a *StudyLinkApp) SetUser(ctx context.Context, id studylink.UserID) error {
	if err := a.persistOperation(Params("user_id", id)); err != nil {
		return err
	}
	err := a.identity.SetCurrentUser(ctx, id)
	a.op.Fail(err)
	return err
}

// GetHistory returns the most recent operations, newest first.
func (a *StudyLinkApp) GetHistory(limit int) ([]*studylink.Operation, error) {
	return a.db.ListOperations(limit)
}

// Close finalizes the operation and closes all resources.
func (a *StudyLinkApp) Close() error {
	var firstErr error

	if a.stopWatch != nil {
		a.stopWatch()
	}

	if a.op.Persisted() {
		a.logger.Info("operation finished", "name", a.op.Name, "status", a.op.Status, "parameters", a.op.Parameters)
		if err := a.db.FinishOperation(a.op.ID, a.op.Status, a.op.Detail, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
