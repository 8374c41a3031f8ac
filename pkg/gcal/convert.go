package gcal

import (
	"fmt"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
	"google.golang.org/api/calendar/v3"
)

// KeyProperty is the private extended property that ties an event to the
// trip or task it was made from.
const KeyProperty = "tripcal_key"

// Prefix is the summary marker for a step status. Waiting steps get none.
func Prefix(s workflow.Status) string {
	switch s {
	case workflow.StatusFinish:
		return "✓"
	case workflow.StatusError:
		return "!"
	case workflow.StatusProcess:
		return "‣"
	default:
		return ""
	}
}

func allDay(d model.Date) *calendar.EventDateTime {
	return &calendar.EventDateTime{Date: d.String()}
}

// TripEvent spans the trip's inclusive range; all-day events end exclusively.
func TripEvent(key string, trip model.Trip, progress workflow.Progress, colorID string) *calendar.Event {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Trip: %s\n", trip.Name)
	fmt.Fprintf(&desc, "Progress: %d/%d (%d%%)\n", progress.Done, progress.Total, progress.Percent)
	if len(trip.MilestoneNotes) > 0 {
		desc.WriteString("\nNotes:\n")
		for _, n := range trip.MilestoneNotes {
			fmt.Fprintf(&desc, "‣ %s\n", n)
		}
	}
	return &calendar.Event{
		Summary:     trip.Name,
		Description: desc.String(),
		ColorId:     colorID,
		Start:       allDay(trip.Start),
		End:         allDay(trip.End.AddDays(1)),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{KeyProperty: key},
		},
	}
}

// TaskEvent places a dated task on its deadline. trip may be nil.
func TaskEvent(key string, task model.Task, status workflow.Status, trip *model.Trip, colorID string) (*calendar.Event, error) {
	if !task.Dated() {
		return nil, fmt.Errorf("task %d has no deadline", task.ID)
	}

	summary := task.Content
	if p := Prefix(status); p != "" {
		summary = p + " " + task.Content
	}

	var desc strings.Builder
	if trip != nil {
		fmt.Fprintf(&desc, "Trip: %s\n", trip.Name)
	}
	fmt.Fprintf(&desc, "Category: %s\n", task.Category)
	fmt.Fprintf(&desc, "Status: %s\n", status.Label())
	if task.Link != nil && task.Link.Note != "" {
		fmt.Fprintf(&desc, "\nNote:\n‣ %s\n", task.Link.Note)
	}

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     colorID,
		Start:       allDay(*task.Deadline),
		End:         allDay(task.Deadline.AddDays(1)),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{KeyProperty: key},
		},
	}, nil
}

// EventNeedsUpdate returns a patch with the fields of target that differ
// from existing, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		if target.Description == "" {
			patch.ForceSendFields = append(patch.ForceSendFields, "Description")
		}
		needsUpdate = true
	}
	// An empty ColorId is omitted from the request unless forced, which
	// would leave the old color on the event.
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		if target.ColorId == "" {
			patch.ForceSendFields = append(patch.ForceSendFields, "ColorId")
		}
		needsUpdate = true
	}
	if !sameDay(existing.Start, target.Start) || !sameDay(existing.End, target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

// sameDay compares all-day values. An event someone changed to a timed one
// never matches.
func sameDay(a, b *calendar.EventDateTime) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Date == b.Date && a.DateTime == b.DateTime
}
