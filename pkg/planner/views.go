package planner

import (
	"fmt"

	"github.com/harrisonrobin/tripcal/pkg/agenda"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/store"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
)

// Views are recomputed from the current collections on every call.

func (p *Planner) index() agenda.Index {
	tasks, trips := p.snapshot()
	return agenda.Build(tasks, trips)
}

// Day resolves a single calendar day.
func (p *Planner) Day(d model.Date) agenda.Day {
	return p.index().Day(d, p.holidays)
}

// Horizon lists the non-empty days of the rolling window starting at today.
func (p *Planner) Horizon(today model.Date) []agenda.Day {
	return p.index().Horizon(today, p.holidays)
}

// Trips returns every trip, pinned first.
func (p *Planner) Trips() []model.Trip {
	_, trips := p.snapshot()
	return order.Trips(trips)
}

// Board returns one category's tasks, open ones first.
func (p *Planner) Board(category model.Category) []model.Task {
	tasks, _ := p.snapshot()
	return order.Board(tasks, category)
}

// Timeline returns the trip's dated tasks as workflow steps.
func (p *Planner) Timeline(tripID string, mode order.Mode, today model.Date) ([]workflow.Step, error) {
	if _, ok := p.Trip(tripID); !ok {
		return nil, fmt.Errorf("trip %s: %w", tripID, store.ErrNotFound)
	}
	tasks, _ := p.snapshot()
	return workflow.Steps(tripID, tasks, mode, today), nil
}

// Memos returns the trip's undated tasks.
func (p *Planner) Memos(tripID string) ([]model.Task, error) {
	if _, ok := p.Trip(tripID); !ok {
		return nil, fmt.Errorf("trip %s: %w", tripID, store.ErrNotFound)
	}
	tasks, _ := p.snapshot()
	return workflow.Memos(tripID, tasks), nil
}

func (p *Planner) Progress(tripID string) workflow.Progress {
	tasks, _ := p.snapshot()
	return workflow.ProgressOf(tripID, tasks)
}
