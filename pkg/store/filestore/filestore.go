// Package filestore keeps trips and tasks in a single JSON file. It is the
// zero-setup backend; an empty path keeps everything in memory.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/store"
)

type Store struct {
	Trips []model.Trip `json:"trips"`
	Tasks []model.Task `json:"tasks"`
	Path  string       `json:"-"`
	mu    sync.RWMutex
	dirty bool
}

var _ store.Store = (*Store)(nil)

// Open loads the file at path if it exists.
func Open(path string) (*Store, error) {
	s := &Store{Path: path}
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(s); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.Path, err)
	}
	return nil
}

// save must be called with mu held for writing.
func (s *Store) save() error {
	if !s.dirty || s.Path == "" {
		s.dirty = false
		return nil
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(s)
	if err == nil {
		s.dirty = false
	}
	return err
}

func (s *Store) ListTrips(_ context.Context, owner string) ([]model.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Trip
	for _, t := range s.Trips {
		if t.Owner == owner {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListTasks(_ context.Context, owner string) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Task
	for _, t := range s.Tasks {
		if t.Owner == owner {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *Store) tripIndex(owner, id string) int {
	return slices.IndexFunc(s.Trips, func(t model.Trip) bool { return t.Owner == owner && t.ID == id })
}

func (s *Store) taskIndex(owner string, id int64) int {
	return slices.IndexFunc(s.Tasks, func(t model.Task) bool { return t.Owner == owner && t.ID == id })
}

// commit swaps in the new slices and saves them. When the save fails the
// previous slices are restored so a failed write leaves nothing behind.
// Callers hold mu and pass copies, never the live slices.
func (s *Store) commit(trips []model.Trip, tasks []model.Task) error {
	prevTrips, prevTasks, prevDirty := s.Trips, s.Tasks, s.dirty
	s.Trips, s.Tasks, s.dirty = trips, tasks, true
	if err := s.save(); err != nil {
		s.Trips, s.Tasks, s.dirty = prevTrips, prevTasks, prevDirty
		return err
	}
	return nil
}

func (s *Store) UpsertTrip(_ context.Context, trip model.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trips := slices.Clone(s.Trips)
	if i := s.tripIndex(trip.Owner, trip.ID); i >= 0 {
		trips[i] = trip.Clone()
	} else {
		trips = append(trips, trip.Clone())
	}
	return s.commit(trips, s.Tasks)
}

func (s *Store) DeleteTrip(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.tripIndex(owner, id)
	if i < 0 {
		return store.ErrNotFound
	}
	return s.commit(slices.Delete(slices.Clone(s.Trips), i, i+1), s.Tasks)
}

func (s *Store) SaveTripContent(_ context.Context, owner, id string, outline []model.Block, notes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.tripIndex(owner, id)
	if i < 0 {
		return store.ErrNotFound
	}
	trips := slices.Clone(s.Trips)
	trips[i].Outline = slices.Clone(outline)
	trips[i].MilestoneNotes = slices.Clone(notes)
	return s.commit(trips, s.Tasks)
}

func (s *Store) CreateTasks(_ context.Context, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := slices.Clone(s.Tasks)
	for _, t := range tasks {
		if slices.ContainsFunc(next, func(e model.Task) bool { return e.Owner == t.Owner && e.ID == t.ID }) {
			return fmt.Errorf("task %d: %w", t.ID, store.ErrExists)
		}
		next = append(next, t.Clone())
	}
	return s.commit(s.Trips, next)
}

func (s *Store) UpdateTask(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(task.Owner, task.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	tasks := slices.Clone(s.Tasks)
	tasks[i] = task.Clone()
	return s.commit(s.Trips, tasks)
}

func (s *Store) SetTaskDone(_ context.Context, owner string, id int64, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(owner, id)
	if i < 0 {
		return store.ErrNotFound
	}
	if s.Tasks[i].Done == done {
		return s.save()
	}
	tasks := slices.Clone(s.Tasks)
	tasks[i].Done = done
	return s.commit(s.Trips, tasks)
}

func (s *Store) DeleteTask(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(owner, id)
	if i < 0 {
		return store.ErrNotFound
	}
	return s.commit(s.Trips, slices.Delete(slices.Clone(s.Tasks), i, i+1))
}

func (s *Store) ClearTripLinks(_ context.Context, owner, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tasks []model.Task
	for i := range s.Tasks {
		if s.Tasks[i].Owner == owner && s.Tasks[i].LinkedTo(tripID) {
			if tasks == nil {
				tasks = slices.Clone(s.Tasks)
			}
			tasks[i].Link = nil
		}
	}
	if tasks == nil {
		return s.save()
	}
	return s.commit(s.Trips, tasks)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}
