package gcal

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/colors"
	"github.com/harrisonrobin/tripcal/pkg/index"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
	"google.golang.org/api/calendar/v3"
)

// Report counts what one Sync did.
type Report struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Failed    int `json:"failed"`
}

type Syncer struct {
	cal    Calendar
	index  *index.EventIndex
	colors *colors.Cache
	logger *log.Logger
	// Mode orders each trip's timeline before statuses are derived.
	Mode order.Mode
}

func NewSyncer(cal Calendar, idx *index.EventIndex, cache *colors.Cache, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.Default()
	}
	return &Syncer{cal: cal, index: idx, colors: cache, logger: logger, Mode: order.ModePriority}
}

type target struct {
	key   string
	event *calendar.Event
}

// targets converts every trip and dated task into the event it should have.
func (s *Syncer) targets(tasks []model.Task, trips []model.Trip, today model.Date) []target {
	var out []target
	statuses := make(map[int64]workflow.Status)

	for _, trip := range trips {
		key := index.TripKey(trip.ID)
		colorID := s.colors.ColorID(trip.ID, trip.Color)
		out = append(out, target{key, TripEvent(key, trip, workflow.ProgressOf(trip.ID, tasks), colorID)})
		for _, step := range workflow.Steps(trip.ID, tasks, s.Mode, today) {
			statuses[step.Task.ID] = step.Status
		}
	}

	for _, task := range tasks {
		if !task.Dated() {
			continue
		}
		trip, linked := model.LinkedTrip(task, trips)
		status, ok := statuses[task.ID]
		if !ok {
			status = standaloneStatus(task, today)
		}
		colorID := colors.NoTripColorID
		if linked {
			colorID = s.colors.ColorID(trip.ID, trip.Color)
		}
		key := index.TaskKey(task.ID)
		event, err := TaskEvent(key, task, status, trip, colorID)
		if err != nil {
			continue
		}
		out = append(out, target{key, event})
	}
	return out
}

// standaloneStatus is the status of a task outside any trip timeline. There
// is no pipeline to be active in, so open tasks are waiting.
func standaloneStatus(task model.Task, today model.Date) workflow.Status {
	switch {
	case task.Done:
		return workflow.StatusFinish
	case task.Deadline.Before(today):
		return workflow.StatusError
	default:
		return workflow.StatusWait
	}
}

// Sync brings the calendar in line with tasks and trips. Events created by
// earlier syncs whose records are gone get deleted. Individual failures are
// logged and counted; the sync carries on and returns them joined.
func (s *Syncer) Sync(ctx context.Context, tasks []model.Task, trips []model.Trip, today model.Date) (Report, error) {
	var rep Report
	var errs []error
	wanted := make(map[string]bool)

	for _, t := range s.targets(tasks, trips, today) {
		wanted[t.key] = true
		if err := s.syncOne(ctx, t, &rep); err != nil {
			rep.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", t.key, err))
			s.logger.Warnf("sync of %s failed: %v", t.key, err)
		}
	}

	for _, key := range s.index.Keys() {
		if wanted[key] {
			continue
		}
		eventID := s.index.Get(key)
		if err := s.cal.Delete(ctx, eventID); err != nil && !IsGone(err) {
			rep.Failed++
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			s.logger.Warnf("deleting event of %s failed: %v", key, err)
			continue
		}
		s.index.Remove(key)
		if tripID, ok := index.TripID(key); ok {
			s.colors.Forget(tripID)
		}
		rep.Deleted++
	}

	if err := s.index.Save(); err != nil {
		errs = append(errs, fmt.Errorf("save event index: %w", err))
	}
	if err := s.colors.Save(); err != nil {
		errs = append(errs, fmt.Errorf("save color cache: %w", err))
	}
	s.logger.Infof("calendar sync: %d created, %d updated, %d unchanged, %d deleted, %d failed",
		rep.Created, rep.Updated, rep.Unchanged, rep.Deleted, rep.Failed)
	return rep, errors.Join(errs...)
}

func (s *Syncer) syncOne(ctx context.Context, t target, rep *Report) error {
	var existing *calendar.Event
	if eventID := s.index.Get(t.key); eventID != "" {
		if e, err := s.cal.Get(ctx, eventID); err == nil && e.Status != "cancelled" {
			existing = e
		}
	}
	if existing == nil {
		e, err := s.cal.FindByKey(ctx, t.key)
		if err != nil {
			return fmt.Errorf("error searching for event: %w", err)
		}
		existing = e
	}

	if existing == nil {
		created, err := s.cal.Insert(ctx, t.event)
		if err != nil {
			return err
		}
		s.index.Set(t.key, created.Id)
		rep.Created++
		return nil
	}

	s.index.Set(t.key, existing.Id)
	patch := EventNeedsUpdate(existing, t.event)
	if patch == nil {
		rep.Unchanged++
		return nil
	}
	if _, err := s.cal.Patch(ctx, existing.Id, patch); err != nil {
		return err
	}
	rep.Updated++
	return nil
}
