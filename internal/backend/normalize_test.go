package backend

import (
	"testing"

	"studylink/internal/studylink"
)

func TestNormalizeRecord(t *testing.T) {
	t.Run("current field names", func(t *testing.T) {
		got, err := normalizeRecord(map[string]any{
			"group_id":        float64(12),
			"name":            "Calculus Study",
			"course_code":     "MATH146",
			"description":     "Weekly problem sets",
			"current_members": float64(3),
			"max_members":     float64(8),
			"meeting_day":     "Monday",
			"meeting_time":    "18:00",
			"building":        "CAB",
			"room":            "243",
			"next_meeting":    "Monday, 18:00",
			"organizer_id":    float64(5),
			"has_joined":      true,
		})
		if err != nil {
			t.Fatalf("normalizeRecord() error = %v", err)
		}

		want := studylink.StudyGroup{
			ID:          12,
			Name:        "Calculus Study",
			Subject:     "MATH146",
			Description: "Weekly problem sets",
			Members:     3,
			MaxMembers:  8,
			MeetingDay:  "Monday",
			MeetingTime: "18:00",
			Building:    "CAB",
			Floor:       "243",
			NextMeeting: "Monday, 18:00",
			OrganizerID: 5,
		}
		if got.Group != want {
			t.Errorf("Group = %+v\nwant    %+v", got.Group, want)
		}
		if got.HasJoined == nil || !*got.HasJoined {
			t.Errorf("HasJoined = %v, want true", got.HasJoined)
		}
	})

	t.Run("older field names", func(t *testing.T) {
		got, err := normalizeRecord(map[string]any{
			"eid":         "7",
			"name":        "Chem Review",
			"members":     "4",
			"max_members": 4,
			"location":    "CCIS",
			"floor":       1,
			"owner_id":    "2",
		})
		if err != nil {
			t.Fatalf("normalizeRecord() error = %v", err)
		}

		g := got.Group
		if g.ID != 7 || g.Members != 4 || g.MaxMembers != 4 {
			t.Errorf("ID/Members/MaxMembers = %d/%d/%d, want 7/4/4", g.ID, g.Members, g.MaxMembers)
		}
		if g.Building != "CCIS" || g.Floor != "1" {
			t.Errorf("Building/Floor = %q/%q, want CCIS/1", g.Building, g.Floor)
		}
		if g.OrganizerID != 2 {
			t.Errorf("OrganizerID = %d, want 2", g.OrganizerID)
		}
		if got.HasJoined != nil {
			t.Errorf("HasJoined = %v, want nil", *got.HasJoined)
		}
	})

	t.Run("eid wins over id", func(t *testing.T) {
		got, err := normalizeRecord(map[string]any{"eid": 3, "id": 99, "name": "x"})
		if err != nil {
			t.Fatalf("normalizeRecord() error = %v", err)
		}
		if got.Group.ID != 3 {
			t.Errorf("ID = %d, want 3", got.Group.ID)
		}
	})

	t.Run("defaults for missing fields", func(t *testing.T) {
		got, err := normalizeRecord(map[string]any{
			"id":           1,
			"meeting_day":  "Friday",
			"meeting_time": "14:00",
			"members":      -2,
		})
		if err != nil {
			t.Fatalf("normalizeRecord() error = %v", err)
		}
		if got.Group.Name != "Untitled Group" {
			t.Errorf("Name = %q, want Untitled Group", got.Group.Name)
		}
		if got.Group.NextMeeting != "Friday, 14:00" {
			t.Errorf("NextMeeting = %q, want derived \"Friday, 14:00\"", got.Group.NextMeeting)
		}
		if got.Group.Members != 0 {
			t.Errorf("Members = %d, want floored 0", got.Group.Members)
		}
	})

	t.Run("string has_joined", func(t *testing.T) {
		got, err := normalizeRecord(map[string]any{"id": 1, "has_joined": "false"})
		if err != nil {
			t.Fatalf("normalizeRecord() error = %v", err)
		}
		if got.HasJoined == nil || *got.HasJoined {
			t.Errorf("HasJoined = %v, want false", got.HasJoined)
		}
	})

	for _, raw := range []map[string]any{
		{"name": "no id"},
		{"id": 0, "name": "zero"},
		{"id": "abc", "name": "garbage"},
		{"group_id": -4},
	} {
		if _, err := normalizeRecord(raw); err == nil {
			t.Errorf("normalizeRecord(%v) expected error, got nil", raw)
		}
	}
}

func TestNormalizeRecords_SkipsUnidentified(t *testing.T) {
	got := normalizeRecords([]map[string]any{
		{"id": 1, "name": "kept"},
		{"name": "dropped"},
		{"eid": 2, "name": "also kept"},
	}, studylink.NewNopLogger())

	if len(got) != 2 || got[0].Group.ID != 1 || got[1].Group.ID != 2 {
		t.Errorf("normalizeRecords() = %+v, want ids [1 2]", got)
	}
}

func TestNormalizeRecords_MissingLimit(t *testing.T) {
	logger := &countingLogger{}
	got := normalizeRecords([]map[string]any{
		{"id": 1, "name": "no limit", "current_members": 3},
		{"id": 2, "name": "limited", "current_members": 3, "max_members": 3},
	}, logger)

	if len(got) != 2 {
		t.Fatalf("normalizeRecords() returned %d records, want 2", len(got))
	}
	if got[0].Group.MaxMembers != 0 || got[0].Group.IsFull() {
		t.Errorf("group without a limit = %+v, want MaxMembers 0 and not full", got[0].Group)
	}
	if !got[1].Group.IsFull() {
		t.Error("group at its limit is not full")
	}
	if logger.warnings != 1 {
		t.Errorf("warnings = %d, want 1", logger.warnings)
	}
}

// countingLogger counts warnings and discards everything else.
type countingLogger struct {
	studylink.NopLogger
	warnings int
}

func (l *countingLogger) Warn(string, ...any) { l.warnings++ }
