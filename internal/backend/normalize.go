package backend

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"studylink/internal/studylink"
)

// untitledGroup is shown for records that arrive without a name.
const untitledGroup = "Untitled Group"

// wireGroup holds every field name the backend has used for a group record.
// Aliased fields stay untyped until normalizeRecord picks the one present.
type wireGroup struct {
	EID     any `mapstructure:"eid"`
	GroupID any `mapstructure:"group_id"`
	ID      any `mapstructure:"id"`

	Name        string `mapstructure:"name"`
	CourseCode  string `mapstructure:"course_code"`
	Description string `mapstructure:"description"`

	CurrentMembers any `mapstructure:"current_members"`
	Members        any `mapstructure:"members"`
	MaxMembers     any `mapstructure:"max_members"`

	MeetingDay  string `mapstructure:"meeting_day"`
	MeetingTime string `mapstructure:"meeting_time"`
	NextMeeting string `mapstructure:"next_meeting"`

	Building any `mapstructure:"building"`
	Location any `mapstructure:"location"`
	Room     any `mapstructure:"room"`
	Floor    any `mapstructure:"floor"`

	OrganizerID any `mapstructure:"organizer_id"`
	OwnerID     any `mapstructure:"owner_id"`

	HasJoined any `mapstructure:"has_joined"`
}

// normalizeRecord maps one backend record onto the canonical Listing.
// It fails only when the record carries no usable identifier.
func normalizeRecord(raw map[string]any) (studylink.Listing, error) {
	var w wireGroup
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &w,
	})
	if err != nil {
		return studylink.Listing{}, fmt.Errorf("creating record decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return studylink.Listing{}, fmt.Errorf("decoding group record: %w", err)
	}

	rawID := firstPresent(w.EID, w.GroupID, w.ID)
	if rawID == nil {
		return studylink.Listing{}, fmt.Errorf("group record has no identifier")
	}
	id, err := cast.ToInt64E(rawID)
	if err != nil || id <= 0 {
		return studylink.Listing{}, fmt.Errorf("group record has invalid identifier %v", rawID)
	}

	g := studylink.StudyGroup{
		ID:          id,
		Name:        strings.TrimSpace(w.Name),
		Subject:     strings.TrimSpace(w.CourseCode),
		Description: strings.TrimSpace(w.Description),
		Members:     max(cast.ToInt(firstPresent(w.CurrentMembers, w.Members)), 0),
		MaxMembers:  cast.ToInt(w.MaxMembers),
		MeetingDay:  w.MeetingDay,
		MeetingTime: w.MeetingTime,
		Building:    cast.ToString(firstPresent(w.Building, w.Location)),
		Floor:       cast.ToString(firstPresent(w.Room, w.Floor)),
		NextMeeting: w.NextMeeting,
		OrganizerID: studylink.UserID(cast.ToInt64(firstPresent(w.OrganizerID, w.OwnerID))),
	}
	if g.Name == "" {
		g.Name = untitledGroup
	}
	if g.NextMeeting == "" && g.MeetingDay != "" && g.MeetingTime != "" {
		g.NextMeeting = g.MeetingDay + ", " + g.MeetingTime
	}

	listing := studylink.Listing{Group: g}
	if w.HasJoined != nil {
		if joined, err := cast.ToBoolE(w.HasJoined); err == nil {
			listing.HasJoined = &joined
		}
	}
	return listing, nil
}

// normalizeRecords normalizes a list response, skipping records without a
// usable identifier. Records without a member limit are kept; their limit
// stays 0, which callers treat as unknown.
func normalizeRecords(raw []map[string]any, logger studylink.Logger) []studylink.Listing {
	out := make([]studylink.Listing, 0, len(raw))
	for i, r := range raw {
		l, err := normalizeRecord(r)
		if err != nil {
			logger.Warn("skipping group record", "index", i, "error", err)
			continue
		}
		if l.Group.MaxMembers <= 0 {
			logger.Warn("group record has no member limit", "group_id", l.Group.ID)
		}
		out = append(out, l)
	}
	return out
}

// firstPresent returns the first argument that is not nil.
func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
