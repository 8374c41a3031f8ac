// Package workflow derives the per-trip progress pipeline.
//
// A trip's dated tasks form a linear checklist. Exactly one step can be
// active at a time: the first open task in the ordered sequence. When that
// task is overdue it is reported as an error and nothing else becomes
// active until it is dealt with; later open tasks keep waiting even if
// their own deadlines are still ahead.
package workflow

import (
	"math"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
)

// Status is the display state of one step.
type Status string

const (
	StatusFinish  Status = "finish"
	StatusError   Status = "error"
	StatusProcess Status = "process"
	StatusWait    Status = "wait"
)

func (s Status) Label() string {
	switch s {
	case StatusFinish:
		return "done"
	case StatusError:
		return "overdue"
	case StatusProcess:
		return "in progress"
	default:
		return "waiting"
	}
}

// Derive computes a status for every task of an already ordered sequence.
func Derive(ordered []model.Task, today model.Date) []Status {
	firstUndone := -1
	for i, t := range ordered {
		if !t.Done {
			firstUndone = i
			break
		}
	}

	statuses := make([]Status, len(ordered))
	for i, t := range ordered {
		switch {
		case t.Done:
			statuses[i] = StatusFinish
		case t.Dated() && t.Deadline.Before(today):
			statuses[i] = StatusError
		case i == firstUndone:
			statuses[i] = StatusProcess
		default:
			statuses[i] = StatusWait
		}
	}
	return statuses
}

// Step pairs a task with its derived status.
type Step struct {
	Task   model.Task `json:"task"`
	Status Status     `json:"status"`
}

// Steps builds the timeline of one trip: its dated tasks, ordered by mode,
// with statuses. Tasks linked to other or missing trips are not members.
func Steps(tripID string, tasks []model.Task, mode order.Mode, today model.Date) []Step {
	var members []model.Task
	for _, t := range tasks {
		if t.LinkedTo(tripID) && t.Dated() {
			members = append(members, t)
		}
	}
	ordered := order.Timeline(members, mode)
	statuses := Derive(ordered, today)

	steps := make([]Step, len(ordered))
	for i := range ordered {
		steps[i] = Step{Task: ordered[i], Status: statuses[i]}
	}
	return steps
}

// Memos returns the trip's undated tasks, open ones first.
func Memos(tripID string, tasks []model.Task) []model.Task {
	var memos []model.Task
	for _, t := range tasks {
		if t.LinkedTo(tripID) && !t.Dated() {
			memos = append(memos, t)
		}
	}
	return order.Memos(memos)
}

// Progress is the completion summary of a trip.
type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// ProgressOf counts every task linked to the trip, dated or not.
func ProgressOf(tripID string, tasks []model.Task) Progress {
	var p Progress
	for _, t := range tasks {
		if !t.LinkedTo(tripID) {
			continue
		}
		p.Total++
		if t.Done {
			p.Done++
		}
	}
	p.Percent = int(math.Round(float64(p.Done) * 100 / float64(max(p.Total, 1))))
	return p
}

// Active returns the index of the step in process, or -1.
func Active(steps []Step) int {
	for i, s := range steps {
		if s.Status == StatusProcess {
			return i
		}
	}
	return -1
}
