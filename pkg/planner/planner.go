// Package planner holds one owner's trips and tasks in memory and applies
// mutations against a store.Store.
//
// Toggling a task's done flag is optimistic: the flag flips locally first
// and is reverted if the store rejects the write. Every other mutation goes
// to the store first and only touches local state once it succeeded.
//
// Concurrent toggles or content edits of the same record are last write
// wins. The mutex only keeps memory access safe for concurrent callers such
// as the HTTP server; it does not order writes at the store.
package planner

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/autosave"
	"github.com/harrisonrobin/tripcal/pkg/holiday"
	"github.com/harrisonrobin/tripcal/pkg/importer"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/store"
)

// Options configures a Planner. Zero values pick the defaults.
type Options struct {
	Holidays holiday.Source
	Autosave *autosave.Scheduler
	IDs      *model.IDClock
	Logger   *log.Logger
	Now      func() time.Time
}

type Planner struct {
	store    store.Store
	owner    string
	holidays holiday.Source
	autosave *autosave.Scheduler
	ids      *model.IDClock
	logger   *log.Logger
	now      func() time.Time

	mu    sync.RWMutex
	tasks []model.Task
	trips []model.Trip
}

func New(st store.Store, owner string, opts Options) *Planner {
	p := &Planner{
		store:    st,
		owner:    owner,
		holidays: opts.Holidays,
		autosave: opts.Autosave,
		ids:      opts.IDs,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if p.holidays == nil {
		p.holidays = holiday.Default()
	}
	if p.autosave == nil {
		p.autosave = autosave.NewScheduler(autosave.DefaultDelay)
	}
	if p.ids == nil {
		p.ids = model.NewIDClock()
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Owner returns the id every record of this planner is scoped by.
func (p *Planner) Owner() string { return p.owner }

// Today is the current calendar day by the planner's clock.
func (p *Planner) Today() model.Date { return model.Today(p.now()) }

// Load replaces local state with the store's contents.
func (p *Planner) Load(ctx context.Context) error {
	trips, err := p.store.ListTrips(ctx, p.owner)
	if err != nil {
		return fmt.Errorf("load trips: %w", err)
	}
	tasks, err := p.store.ListTasks(ctx, p.owner)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	for _, t := range tasks {
		p.ids.Observe(t.ID)
	}

	p.mu.Lock()
	p.trips, p.tasks = trips, tasks
	p.mu.Unlock()
	p.logger.Debugf("loaded %d trips and %d tasks for %s", len(trips), len(tasks), p.owner)
	return nil
}

// Close writes pending autosaves and closes the store.
func (p *Planner) Close() error {
	p.autosave.Flush()
	return p.store.Close()
}

func (p *Planner) taskIndex(id int64) int {
	return slices.IndexFunc(p.tasks, func(t model.Task) bool { return t.ID == id })
}

func (p *Planner) tripIndex(id string) int {
	return slices.IndexFunc(p.trips, func(t model.Trip) bool { return t.ID == id })
}

// Tasks returns a copy of every task.
func (p *Planner) Tasks() []model.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Task, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (p *Planner) Task(id int64) (model.Task, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.taskIndex(id); i >= 0 {
		return p.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// Trip looks a trip up by id.
func (p *Planner) Trip(id string) (model.Trip, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.tripIndex(id); i >= 0 {
		return p.trips[i].Clone(), true
	}
	return model.Trip{}, false
}

func (p *Planner) snapshot() ([]model.Task, []model.Trip) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tasks := make([]model.Task, len(p.tasks))
	for i, t := range p.tasks {
		tasks[i] = t.Clone()
	}
	trips := make([]model.Trip, len(p.trips))
	for i, t := range p.trips {
		trips[i] = t.Clone()
	}
	return tasks, trips
}

// ToggleDone flips the task's done flag and returns the task as it now
// stands locally. On a store failure the flag is put back.
func (p *Planner) ToggleDone(ctx context.Context, id int64) (model.Task, error) {
	p.mu.Lock()
	i := p.taskIndex(id)
	if i < 0 {
		p.mu.Unlock()
		return model.Task{}, fmt.Errorf("toggle task %d: %w", id, store.ErrNotFound)
	}
	before := p.tasks[i].Done
	p.tasks[i].Done = !before
	toggled := p.tasks[i].Clone()
	p.mu.Unlock()

	if err := p.store.SetTaskDone(ctx, p.owner, id, toggled.Done); err != nil {
		p.mu.Lock()
		if i := p.taskIndex(id); i >= 0 {
			p.tasks[i].Done = before
		}
		p.mu.Unlock()
		p.logger.Warnf("toggle of task %d reverted: %v", id, err)
		return model.Task{}, fmt.Errorf("toggle task %d: %w", id, err)
	}
	return toggled, nil
}

// CreateTask validates the draft, assigns an id and owner and persists it.
// An empty category becomes model.DefaultCategory.
func (p *Planner) CreateTask(ctx context.Context, draft model.Task) (model.Task, error) {
	task := draft.Clone()
	if task.Category == "" {
		task.Category = model.DefaultCategory
	}
	if err := task.Validate(); err != nil {
		return model.Task{}, err
	}
	task.ID = p.ids.Next()
	task.Owner = p.owner

	if err := p.store.CreateTasks(ctx, []model.Task{task}); err != nil {
		p.logger.Warnf("create task failed: %v", err)
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}

	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	return task.Clone(), nil
}

// UpdateTask replaces the fields of an existing task.
func (p *Planner) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	task = task.Clone()
	if task.Category == "" {
		task.Category = model.DefaultCategory
	}
	if err := task.Validate(); err != nil {
		return model.Task{}, err
	}
	if _, ok := p.Task(task.ID); !ok {
		return model.Task{}, fmt.Errorf("update task %d: %w", task.ID, store.ErrNotFound)
	}
	task.Owner = p.owner

	if err := p.store.UpdateTask(ctx, task); err != nil {
		p.logger.Warnf("update of task %d failed: %v", task.ID, err)
		return model.Task{}, fmt.Errorf("update task %d: %w", task.ID, err)
	}

	p.mu.Lock()
	if i := p.taskIndex(task.ID); i >= 0 {
		p.tasks[i] = task
	}
	p.mu.Unlock()
	return task.Clone(), nil
}

func (p *Planner) DeleteTask(ctx context.Context, id int64) error {
	if err := p.store.DeleteTask(ctx, p.owner, id); err != nil {
		p.logger.Warnf("delete of task %d failed: %v", id, err)
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	p.mu.Lock()
	if i := p.taskIndex(id); i >= 0 {
		p.tasks = slices.Delete(p.tasks, i, i+1)
	}
	p.mu.Unlock()
	return nil
}

// SaveTrip creates or replaces a trip. When the incoming trip carries no
// outline or notes, the ones already held are kept.
func (p *Planner) SaveTrip(ctx context.Context, trip model.Trip) (model.Trip, error) {
	trip = trip.Clone()
	if err := trip.Validate(); err != nil {
		return model.Trip{}, err
	}
	trip.Owner = p.owner
	if existing, ok := p.Trip(trip.ID); ok {
		if trip.Outline == nil {
			trip.Outline = existing.Outline
		}
		if trip.MilestoneNotes == nil {
			trip.MilestoneNotes = existing.MilestoneNotes
		}
	}

	if err := p.store.UpsertTrip(ctx, trip); err != nil {
		p.logger.Warnf("save of trip %s failed: %v", trip.ID, err)
		return model.Trip{}, fmt.Errorf("save trip %s: %w", trip.ID, err)
	}

	p.mu.Lock()
	if i := p.tripIndex(trip.ID); i >= 0 {
		p.trips[i] = trip
	} else {
		p.trips = append(p.trips, trip)
	}
	p.mu.Unlock()
	return trip.Clone(), nil
}

// DeleteTrip removes the trip and unlinks its tasks. The tasks survive as
// unlinked records. Local links are dropped even when the store's unlink
// fails, since the trip itself is gone; that failure is still returned.
func (p *Planner) DeleteTrip(ctx context.Context, id string) error {
	if err := p.store.DeleteTrip(ctx, p.owner, id); err != nil {
		p.logger.Warnf("delete of trip %s failed: %v", id, err)
		return fmt.Errorf("delete trip %s: %w", id, err)
	}
	p.autosave.Cancel(id)
	unlinkErr := p.store.ClearTripLinks(ctx, p.owner, id)

	p.mu.Lock()
	if i := p.tripIndex(id); i >= 0 {
		p.trips = slices.Delete(p.trips, i, i+1)
	}
	for i := range p.tasks {
		if p.tasks[i].LinkedTo(id) {
			p.tasks[i].Link = nil
		}
	}
	p.mu.Unlock()

	if unlinkErr != nil {
		p.logger.Warnf("unlinking tasks of deleted trip %s failed: %v", id, unlinkErr)
		return fmt.Errorf("unlink tasks of trip %s: %w", id, unlinkErr)
	}
	return nil
}

// Import parses text into drafts and creates them as one batch. A batch
// with no drafts is a validation error and nothing is written. The parse
// result is returned in both cases so skipped lines can be reported.
func (p *Planner) Import(ctx context.Context, text, tripID string) (*importer.Result, error) {
	if tripID != "" {
		if _, ok := p.Trip(tripID); !ok {
			return nil, fmt.Errorf("import into trip %s: %w", tripID, store.ErrNotFound)
		}
	}
	res, err := importer.ParseText(text, tripID)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	if len(res.Drafts) == 0 {
		return res, &model.ValidationError{Field: "import", Err: importer.ErrNoDrafts}
	}

	for i := range res.Drafts {
		res.Drafts[i].ID = p.ids.Next()
		res.Drafts[i].Owner = p.owner
	}
	if err := p.store.CreateTasks(ctx, res.Drafts); err != nil {
		p.logger.Warnf("import of %d tasks failed: %v", len(res.Drafts), err)
		return res, fmt.Errorf("import: %w", err)
	}

	p.mu.Lock()
	for _, t := range res.Drafts {
		p.tasks = append(p.tasks, t.Clone())
	}
	p.mu.Unlock()
	p.logger.Infof("imported %d tasks, skipped %d lines", len(res.Drafts), len(res.Skipped))
	return res, nil
}
