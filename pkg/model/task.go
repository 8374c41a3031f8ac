package model

import (
	"fmt"
	"strings"
)

// Category is the urgency bucket of a task. The declaration order is the
// priority order: immediate sorts before important, and so on.
type Category string

const (
	CategoryImmediate Category = "immediate"
	CategoryImportant Category = "important"
	CategoryReminder  Category = "reminder"
	CategoryMemo      Category = "memo"
	CategoryImported  Category = "imported"

	// DefaultCategory is used when a task is created without one.
	DefaultCategory = CategoryReminder
	// ImportCategory is stamped on every bulk-imported draft.
	ImportCategory = CategoryImported
)

// Categories lists every category in priority order.
var Categories = []Category{
	CategoryImmediate,
	CategoryImportant,
	CategoryReminder,
	CategoryMemo,
	CategoryImported,
}

// Weight is the sort key of the category; lower is more urgent. Unknown
// categories weigh after every known one.
func (c Category) Weight() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

func (c Category) Valid() bool {
	return c.Weight() < len(Categories)
}

// ParseCategory maps a name to a Category. An empty name yields DefaultCategory.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultCategory, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// LinkedInfo is a weak reference from a task to a trip. The trip may no
// longer exist; see LinkedTrip.
type LinkedInfo struct {
	GroupID string `json:"groupId"`
	Note    string `json:"note,omitempty"`
}

// Task is a single to-do, optionally dated and optionally linked to a trip.
type Task struct {
	ID       int64       `json:"id"`
	Content  string      `json:"content"`
	Category Category    `json:"category"`
	Deadline *Date       `json:"deadline,omitempty"`
	Done     bool        `json:"done"`
	Link     *LinkedInfo `json:"linkedInfo,omitempty"`
	Owner    string      `json:"user_id,omitempty"`
}

// Dated reports whether the task has a deadline.
func (t Task) Dated() bool {
	return t.Deadline != nil && !t.Deadline.IsZero()
}

// TripID returns the linked trip id, or "" for unlinked tasks.
func (t Task) TripID() string {
	if t.Link == nil {
		return ""
	}
	return t.Link.GroupID
}

// LinkedTo reports whether the task points at the trip with the given id.
func (t Task) LinkedTo(tripID string) bool {
	return tripID != "" && t.TripID() == tripID
}

// Validate checks the fields a task must carry before it is persisted.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Content) == "" {
		return &ValidationError{Field: "content", Err: fmt.Errorf("must not be empty")}
	}
	if t.Category != "" && !t.Category.Valid() {
		return &ValidationError{Field: "category", Err: fmt.Errorf("unknown category %q", t.Category)}
	}
	if t.Deadline != nil && t.Deadline.IsZero() {
		return &ValidationError{Field: "deadline", Err: fmt.Errorf("must be a calendar date")}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (t Task) Clone() Task {
	if t.Deadline != nil {
		d := *t.Deadline
		t.Deadline = &d
	}
	if t.Link != nil {
		l := *t.Link
		t.Link = &l
	}
	return t
}
