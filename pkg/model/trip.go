package model

import (
	"fmt"
	"slices"
	"strings"
)

// BlockKind is the type of a trip outline block.
type BlockKind string

const (
	BlockHeading BlockKind = "heading"
	BlockText    BlockKind = "text"
	BlockCheck   BlockKind = "check"
)

// Block is one line of a trip outline. The engine never interprets it; the
// outline only round-trips through autosave.
type Block struct {
	Kind    BlockKind `json:"kind"`
	Indent  int       `json:"indent"`
	Text    string    `json:"text"`
	Checked bool      `json:"checked,omitempty"`
}

// Trip is a user-defined multi-day event ("group").
type Trip struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Color          string   `json:"color,omitempty"`
	Start          Date     `json:"start"`
	End            Date     `json:"end"`
	Pinned         bool     `json:"pinned,omitempty"`
	Outline        []Block  `json:"outline,omitempty"`
	MilestoneNotes []string `json:"milestoneNotes,omitempty"`
	Owner          string   `json:"user_id,omitempty"`
}

// Validate checks the trip form rules: id and name are required and the
// range must not run backwards.
func (t Trip) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Err: fmt.Errorf("must not be empty")}
	}
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Err: fmt.Errorf("must not be empty")}
	}
	if t.Start.IsZero() || t.End.IsZero() {
		return &ValidationError{Field: "dates", Err: fmt.Errorf("start and end are required")}
	}
	if t.End.Before(t.Start) {
		return &ValidationError{Field: "dates", Err: fmt.Errorf("end %s is before start %s", t.End, t.Start)}
	}
	return nil
}

// Contains reports whether d falls inside the inclusive range.
func (t Trip) Contains(d Date) bool {
	return !d.Before(t.Start) && !d.After(t.End)
}

// Days lists every day of the inclusive range. Backwards ranges yield nothing.
func (t Trip) Days() []Date {
	var days []Date
	for d := t.Start; !d.After(t.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Clone returns a deep copy of the trip.
func (t Trip) Clone() Trip {
	t.Outline = slices.Clone(t.Outline)
	t.MilestoneNotes = slices.Clone(t.MilestoneNotes)
	return t
}

// FindTrip resolves a trip id. Unknown ids resolve to (nil, false); callers
// treat that as "no trip", never as an error.
func FindTrip(trips []Trip, id string) (*Trip, bool) {
	if id == "" {
		return nil, false
	}
	for i := range trips {
		if trips[i].ID == id {
			return &trips[i], true
		}
	}
	return nil, false
}

// LinkedTrip resolves the trip a task points at, treating dangling links as absent.
func LinkedTrip(task Task, trips []Trip) (*Trip, bool) {
	return FindTrip(trips, task.TripID())
}
