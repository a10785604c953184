package testutil

import (
	"testing"

	"studylink/internal/database"
)

// NewTestDatabase returns an in-memory database with the current schema and
// the given local storage entries, as alternating keys and values. It is
// closed when the test completes.
func NewTestDatabase(t *testing.T, items ...string) *database.SQLiteDatabase {
	t.Helper()
	if len(items)%2 != 0 {
		t.Fatalf("NewTestDatabase: odd number of item arguments")
	}

	conn, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if _, err := conn.Exec(database.Schema); err != nil {
		conn.Close()
		t.Fatalf("applying schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(conn)
	t.Cleanup(func() { db.Close() })

	for i := 0; i < len(items); i += 2 {
		if err := db.SetItem(items[i], items[i+1]); err != nil {
			t.Fatalf("seeding %s: %v", items[i], err)
		}
	}
	return db
}
