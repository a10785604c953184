package database

import (
	"testing"
	"time"

	"studylink/internal/database/migrations"
	"studylink/internal/studylink"
)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSQLiteDatabase_LocalStorage(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		db := newTestDB(t)

		value, ok, err := db.GetItem("user_id")
		if err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		if ok || value != "" {
			t.Errorf("GetItem() = %q, %v; want \"\", false", value, ok)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.SetItem("user_id", "5"); err != nil {
			t.Fatalf("SetItem() error = %v", err)
		}
		value, ok, err := db.GetItem("user_id")
		if err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		if !ok || value != "5" {
			t.Errorf("GetItem() = %q, %v; want \"5\", true", value, ok)
		}
	})

	t.Run("set replaces existing value", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.SetItem("user_id", "5"); err != nil {
			t.Fatalf("SetItem() error = %v", err)
		}
		if err := db.SetItem("user_id", "7"); err != nil {
			t.Fatalf("SetItem() error = %v", err)
		}
		value, _, err := db.GetItem("user_id")
		if err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		if value != "7" {
			t.Errorf("GetItem() = %q, want \"7\"", value)
		}

		var count int
		if err := db.db.QueryRow("SELECT COUNT(*) FROM local_storage").Scan(&count); err != nil {
			t.Fatalf("count rows: %v", err)
		}
		if count != 1 {
			t.Errorf("row count = %d, want 1", count)
		}
	})

	t.Run("remove", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.SetItem("joined_groups.5", "[1,2]"); err != nil {
			t.Fatalf("SetItem() error = %v", err)
		}
		if err := db.RemoveItem("joined_groups.5"); err != nil {
			t.Fatalf("RemoveItem() error = %v", err)
		}
		if _, ok, _ := db.GetItem("joined_groups.5"); ok {
			t.Error("GetItem() found removed key")
		}
		if err := db.RemoveItem("joined_groups.5"); err != nil {
			t.Errorf("RemoveItem() on absent key error = %v, want nil", err)
		}
	})
}

func TestSQLiteDatabase_Operations(t *testing.T) {
	t.Run("start and finish", func(t *testing.T) {
		db := newTestDB(t)
		started := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

		id, err := db.StartOperation("join", "group_id=3", 5, started)
		if err != nil {
			t.Fatalf("StartOperation() error = %v", err)
		}
		if id <= 0 {
			t.Fatalf("StartOperation() id = %d, want > 0", id)
		}

		ops, err := db.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("ListOperations() returned %d ops, want 1", len(ops))
		}
		if ops[0].Status != "running" || ops[0].FinishedAt.Valid {
			t.Errorf("unfinished op = %+v, want status running and no finish time", ops[0])
		}

		finished := started.Add(2 * time.Second)
		if err := db.FinishOperation(id, "success", "", finished); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, err = db.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		op := ops[0]
		if op.Name != "join" || op.Parameters != "group_id=3" || op.UserID != studylink.UserID(5) {
			t.Errorf("op = %+v, want join group_id=3 by user 5", op)
		}
		if op.Status != "success" {
			t.Errorf("Status = %q, want success", op.Status)
		}
		if !op.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", op.StartedAt, started)
		}
		if !op.FinishedAt.Valid || !op.FinishedAt.Time.Equal(finished) {
			t.Errorf("FinishedAt = %v, want %v", op.FinishedAt, finished)
		}
	})

	t.Run("finish unknown operation", func(t *testing.T) {
		db := newTestDB(t)

		if err := db.FinishOperation(42, "error", "boom", time.Now()); err == nil {
			t.Error("FinishOperation() expected error for unknown id, got nil")
		}
	})

	t.Run("list is newest first and limited", func(t *testing.T) {
		db := newTestDB(t)
		base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

		for i, name := range []string{"create", "join", "leave"} {
			if _, err := db.StartOperation(name, "", 5, base.Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatalf("StartOperation(%s) error = %v", name, err)
			}
		}

		ops, err := db.ListOperations(2)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("ListOperations(2) returned %d ops, want 2", len(ops))
		}
		if ops[0].Name != "leave" || ops[1].Name != "join" {
			t.Errorf("order = [%s %s], want [leave join]", ops[0].Name, ops[1].Name)
		}
	})
}

func TestSchema_MatchesMigrations(t *testing.T) {
	want, err := migrations.RenderSchema()
	if err != nil {
		t.Fatalf("RenderSchema() error = %v", err)
	}
	if Schema != want {
		t.Errorf("schema.sql is out of date; run 'go generate ./internal/database'\ngot:\n%s\nwant:\n%s", Schema, want)
	}
}
