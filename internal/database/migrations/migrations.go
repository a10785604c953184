// Package migrations embeds the SQLite schema history and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

const filesDir = "files"

// Status describes a database relative to the embedded migrations.
type Status struct {
	// Current is 0 when the database has never been migrated.
	Current uint
	Latest  uint
	Dirty   bool
}

// Pending is how many migrations the database is behind.
func (s Status) Pending() int {
	if s.Current >= s.Latest {
		return 0
	}
	return int(s.Latest - s.Current)
}

// Err returns nil when the database is clean and at the latest version.
func (s Status) Err() error {
	switch {
	case s.Dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", s.Current)
	case s.Current == 0:
		return fmt.Errorf("database has no schema version (needs migration)")
	case s.Current < s.Latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)", s.Current, s.Latest, s.Pending())
	case s.Current > s.Latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)", s.Current, s.Latest)
	}
	return nil
}

// GetStatus reads the schema version recorded in db.
func GetStatus(db *sql.DB) (Status, error) {
	latest, err := LatestVersion()
	if err != nil {
		return Status{}, err
	}

	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}
	// m is not closed: that would close db, which the caller owns.

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, fmt.Errorf("failed to get database version: %w", err)
	}
	return Status{Current: version, Latest: latest, Dirty: dirty}, nil
}

// CheckDBMigrationStatus returns nil if db is at the latest version.
func CheckDBMigrationStatus(db *sql.DB) error {
	st, err := GetStatus(db)
	if err != nil {
		return err
	}
	return st.Err()
}

// MigrateUp runs all pending migrations.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// LatestVersion returns the highest embedded migration version.
func LatestVersion() (uint, error) {
	ups, err := upMigrations()
	if err != nil {
		return 0, err
	}
	if len(ups) == 0 {
		return 0, fmt.Errorf("no migrations embedded")
	}
	return ups[len(ups)-1].Version, nil
}

// UpScripts returns the body of every up migration in version order.
func UpScripts() ([]string, error) {
	ups, err := upMigrations()
	if err != nil {
		return nil, err
	}
	scripts := make([]string, 0, len(ups))
	for _, mig := range ups {
		body, err := migrationFiles.ReadFile(path.Join(filesDir, mig.Raw))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", mig.Raw, err)
		}
		scripts = append(scripts, string(body))
	}
	return scripts, nil
}

// RenderSchema returns the combined schema produced by all up migrations,
// as stored in schema.sql.
func RenderSchema() (string, error) {
	scripts, err := UpScripts()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("-- Generated from internal/database/migrations/files/*.up.sql.\n")
	b.WriteString("-- DO NOT EDIT. Run 'go generate ./internal/database' after adding a migration.\n\n")
	for i, s := range scripts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(s))
	}
	b.WriteString("\n")
	return b.String(), nil
}

func upMigrations() ([]*source.Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, filesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	var ups []*source.Migration
	for _, e := range entries {
		mig, err := source.Parse(e.Name())
		if err != nil {
			return nil, fmt.Errorf("parsing migration name %s: %w", e.Name(), err)
		}
		if mig.Direction == source.Up {
			ups = append(ups, mig)
		}
	}
	slices.SortFunc(ups, func(a, b *source.Migration) int {
		return int(a.Version) - int(b.Version)
	})
	return ups, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, filesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
