// Package order holds the sort policies of each planner view. Every function
// returns a new, stably sorted slice and leaves its input untouched.
package order

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
)

// Mode selects how a trip timeline is sequenced.
type Mode string

const (
	// ModePriority puts open tasks first, then by urgency, then by deadline.
	ModePriority Mode = "priority"
	// ModeDate orders purely by deadline and ignores completion.
	ModeDate Mode = "date"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePriority, "":
		return ModePriority, nil
	case ModeDate:
		return ModeDate, nil
	default:
		return "", fmt.Errorf("unknown timeline mode %q, must be one of: priority, date", s)
	}
}

// Timeline orders a trip's dated tasks for the progress view.
func Timeline(tasks []model.Task, mode Mode) []model.Task {
	out := slices.Clone(tasks)
	if mode == ModeDate {
		slices.SortStableFunc(out, byDeadline)
		return out
	}
	slices.SortStableFunc(out, func(a, b model.Task) int {
		if c := byDone(a, b); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Category.Weight(), b.Category.Weight()); c != 0 {
			return c
		}
		return byDeadline(a, b)
	})
	return out
}

// Memos orders a trip's undated tasks: open ones first.
func Memos(tasks []model.Task) []model.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, byDone)
	return out
}

// Board filters to one category and orders open first, then by deadline,
// then newest first.
func Board(tasks []model.Task, category model.Category) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.Category == category {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Task) int {
		if c := byDone(a, b); c != 0 {
			return c
		}
		if c := byDeadline(a, b); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// Trips puts pinned trips first and otherwise keeps the given order.
func Trips(trips []model.Trip) []model.Trip {
	out := slices.Clone(trips)
	slices.SortStableFunc(out, func(a, b model.Trip) int {
		switch {
		case a.Pinned == b.Pinned:
			return 0
		case a.Pinned:
			return -1
		default:
			return 1
		}
	})
	return out
}

// DayTasks orders the tasks of one calendar cell: open first, otherwise as given.
func DayTasks(tasks []model.Task) []model.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, byDone)
	return out
}

func byDone(a, b model.Task) int {
	switch {
	case a.Done == b.Done:
		return 0
	case a.Done:
		return 1
	default:
		return -1
	}
}

// byDeadline sorts undated tasks after every dated one.
func byDeadline(a, b model.Task) int {
	ad, bd := a.Dated(), b.Dated()
	switch {
	case ad && bd:
		return a.Deadline.Compare(*b.Deadline)
	case ad:
		return -1
	case bd:
		return 1
	default:
		return 0
	}
}
