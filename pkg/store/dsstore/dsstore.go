// Package dsstore persists trips and tasks in Google Cloud Datastore. Every
// entity lives under an Owner ancestor so list queries stay strongly
// consistent per user.
package dsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/datastore"
	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/store"
)

// maxBatch is the Datastore limit on entities per multi call.
const maxBatch = 500

const (
	KindOwner = "Owner"
	KindTrip  = "Trip"
	KindTask  = "Task"
)

type tripEntity struct {
	Name    string `datastore:"name"`
	Color   string `datastore:"color,noindex"`
	Start   string `datastore:"start_date"`
	End     string `datastore:"end_date"`
	Pinned  bool   `datastore:"pinned"`
	Outline string `datastore:"outline,noindex"`
	Notes   string `datastore:"notes,noindex"`
}

type taskEntity struct {
	Content  string `datastore:"content,noindex"`
	Category string `datastore:"category"`
	Deadline string `datastore:"deadline"`
	Done     bool   `datastore:"done"`
	GroupID  string `datastore:"group_id"`
	LinkNote string `datastore:"link_note,noindex"`
}

// Store is a Datastore-backed store.Store.
type Store struct {
	ds *datastore.Client
}

var _ store.Store = (*Store)(nil)

// Open creates the client. DATASTORE_EMULATOR_HOST is honoured by the
// client library itself.
func Open(ctx context.Context, projectID string, logger *log.Logger) (*Store, error) {
	if logger != nil {
		logger.Debug("opening datastore", "project", projectID)
	}
	ds, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	return &Store{ds: ds}, nil
}

func ownerKey(owner string) *datastore.Key {
	return datastore.NameKey(KindOwner, owner, nil)
}

func tripKey(owner, id string) *datastore.Key {
	return datastore.NameKey(KindTrip, id, ownerKey(owner))
}

func taskKey(owner string, id int64) *datastore.Key {
	return datastore.IDKey(KindTask, id, ownerKey(owner))
}

type span struct{ start, end int }

// batches splits n items into consecutive spans of at most size.
func batches(n, size int) []span {
	var out []span
	for start := 0; start < n; start += size {
		out = append(out, span{start, min(start+size, n)})
	}
	return out
}

// existing reads a GetMulti error and returns the positions that were
// found. Missing entities are not an error.
func existing(err error, n int) ([]int, error) {
	if err == nil {
		taken := make([]int, n)
		for i := range taken {
			taken[i] = i
		}
		return taken, nil
	}
	var multi datastore.MultiError
	if !errors.As(err, &multi) {
		return nil, err
	}
	var taken []int
	for i, e := range multi {
		switch {
		case e == nil:
			taken = append(taken, i)
		case errors.Is(e, datastore.ErrNoSuchEntity):
		default:
			return nil, e
		}
	}
	return taken, nil
}

func wrap(err error) error {
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) ListTrips(ctx context.Context, owner string) ([]model.Trip, error) {
	q := datastore.NewQuery(KindTrip).Ancestor(ownerKey(owner))
	var entities []tripEntity
	keys, err := s.ds.GetAll(ctx, q, &entities)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	trips := make([]model.Trip, 0, len(keys))
	for i, key := range keys {
		t, err := decodeTrip(key.Name, owner, entities[i])
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, nil
}

func (s *Store) ListTasks(ctx context.Context, owner string) ([]model.Task, error) {
	q := datastore.NewQuery(KindTask).Ancestor(ownerKey(owner))
	var entities []taskEntity
	keys, err := s.ds.GetAll(ctx, q, &entities)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]model.Task, 0, len(keys))
	for i, key := range keys {
		t, err := decodeTask(key.ID, owner, entities[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Store) UpsertTrip(ctx context.Context, trip model.Trip) error {
	e, err := encodeTrip(trip)
	if err != nil {
		return err
	}
	if _, err := s.ds.Put(ctx, tripKey(trip.Owner, trip.ID), &e); err != nil {
		return fmt.Errorf("upsert trip %s: %w", trip.ID, err)
	}
	return nil
}

// DeleteTrip checks existence inside a transaction; a plain Delete of a
// missing key succeeds silently.
func (s *Store) DeleteTrip(ctx context.Context, owner, id string) error {
	key := tripKey(owner, id)
	_, err := s.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e tripEntity
		if err := tx.Get(key, &e); err != nil {
			return err
		}
		return tx.Delete(key)
	})
	return wrap(err)
}

func (s *Store) SaveTripContent(ctx context.Context, owner, id string, outline []model.Block, notes []string) error {
	o, n, err := encodeContent(outline, notes)
	if err != nil {
		return err
	}
	key := tripKey(owner, id)
	_, err = s.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e tripEntity
		if err := tx.Get(key, &e); err != nil {
			return err
		}
		e.Outline, e.Notes = o, n
		_, err := tx.Put(key, &e)
		return err
	})
	return wrap(err)
}

// CreateTasks refuses ids that are already stored, then writes the batch in
// chunks of maxBatch. A failure partway leaves the earlier chunks written.
func (s *Store) CreateTasks(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	keys := make([]*datastore.Key, len(tasks))
	entities := make([]taskEntity, len(tasks))
	for i, t := range tasks {
		keys[i] = taskKey(t.Owner, t.ID)
		entities[i] = encodeTask(t)
	}

	for _, r := range batches(len(keys), maxBatch) {
		found := make([]taskEntity, r.end-r.start)
		taken, err := existing(s.ds.GetMulti(ctx, keys[r.start:r.end], found), len(found))
		if err != nil {
			return fmt.Errorf("create tasks: %w", err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("task %d: %w", tasks[r.start+taken[0]].ID, store.ErrExists)
		}
	}
	if err := s.putMulti(ctx, keys, entities); err != nil {
		return fmt.Errorf("create tasks: %w", err)
	}
	return nil
}

func (s *Store) putMulti(ctx context.Context, keys []*datastore.Key, entities []taskEntity) error {
	for _, r := range batches(len(keys), maxBatch) {
		if _, err := s.ds.PutMulti(ctx, keys[r.start:r.end], entities[r.start:r.end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) mutateTask(ctx context.Context, owner string, id int64, fn func(*taskEntity)) error {
	key := taskKey(owner, id)
	_, err := s.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e taskEntity
		if err := tx.Get(key, &e); err != nil {
			return err
		}
		fn(&e)
		_, err := tx.Put(key, &e)
		return err
	})
	return wrap(err)
}

func (s *Store) UpdateTask(ctx context.Context, task model.Task) error {
	return s.mutateTask(ctx, task.Owner, task.ID, func(e *taskEntity) { *e = encodeTask(task) })
}

func (s *Store) SetTaskDone(ctx context.Context, owner string, id int64, done bool) error {
	return s.mutateTask(ctx, owner, id, func(e *taskEntity) { e.Done = done })
}

func (s *Store) DeleteTask(ctx context.Context, owner string, id int64) error {
	key := taskKey(owner, id)
	_, err := s.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var e taskEntity
		if err := tx.Get(key, &e); err != nil {
			return err
		}
		return tx.Delete(key)
	})
	return wrap(err)
}

func (s *Store) ClearTripLinks(ctx context.Context, owner, tripID string) error {
	q := datastore.NewQuery(KindTask).
		Ancestor(ownerKey(owner)).
		FilterField("group_id", "=", tripID)
	var entities []taskEntity
	keys, err := s.ds.GetAll(ctx, q, &entities)
	if err != nil {
		return fmt.Errorf("clear links to %s: %w", tripID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	for i := range entities {
		entities[i].GroupID = ""
		entities[i].LinkNote = ""
	}
	if err := s.putMulti(ctx, keys, entities); err != nil {
		return fmt.Errorf("clear links to %s: %w", tripID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.ds.Close()
}

func encodeTrip(t model.Trip) (tripEntity, error) {
	o, n, err := encodeContent(t.Outline, t.MilestoneNotes)
	if err != nil {
		return tripEntity{}, err
	}
	return tripEntity{
		Name:    t.Name,
		Color:   t.Color,
		Start:   t.Start.String(),
		End:     t.End.String(),
		Pinned:  t.Pinned,
		Outline: o,
		Notes:   n,
	}, nil
}

func decodeTrip(id, owner string, e tripEntity) (model.Trip, error) {
	t := model.Trip{ID: id, Owner: owner, Name: e.Name, Color: e.Color, Pinned: e.Pinned}
	var err error
	if t.Start, err = model.ParseDate(e.Start); err != nil {
		return t, fmt.Errorf("trip %s: %w", id, err)
	}
	if t.End, err = model.ParseDate(e.End); err != nil {
		return t, fmt.Errorf("trip %s: %w", id, err)
	}
	if e.Outline != "" {
		if err := json.Unmarshal([]byte(e.Outline), &t.Outline); err != nil {
			return t, fmt.Errorf("trip %s outline: %w", id, err)
		}
	}
	if e.Notes != "" {
		if err := json.Unmarshal([]byte(e.Notes), &t.MilestoneNotes); err != nil {
			return t, fmt.Errorf("trip %s notes: %w", id, err)
		}
	}
	return t, nil
}

func encodeTask(t model.Task) taskEntity {
	e := taskEntity{Content: t.Content, Category: string(t.Category), Done: t.Done}
	if t.Dated() {
		e.Deadline = t.Deadline.String()
	}
	if t.Link != nil {
		e.GroupID = t.Link.GroupID
		e.LinkNote = t.Link.Note
	}
	return e
}

func decodeTask(id int64, owner string, e taskEntity) (model.Task, error) {
	t := model.Task{ID: id, Owner: owner, Content: e.Content, Category: model.Category(e.Category), Done: e.Done}
	if e.Deadline != "" {
		d, err := model.ParseDate(e.Deadline)
		if err != nil {
			return t, fmt.Errorf("task %d: %w", id, err)
		}
		t.Deadline = &d
	}
	if e.GroupID != "" {
		t.Link = &model.LinkedInfo{GroupID: e.GroupID, Note: e.LinkNote}
	}
	return t, nil
}

func encodeContent(outline []model.Block, notes []string) (string, string, error) {
	if outline == nil {
		outline = []model.Block{}
	}
	if notes == nil {
		notes = []string{}
	}
	o, err := json.Marshal(outline)
	if err != nil {
		return "", "", fmt.Errorf("encode outline: %w", err)
	}
	n, err := json.Marshal(notes)
	if err != nil {
		return "", "", fmt.Errorf("encode notes: %w", err)
	}
	return string(o), string(n), nil
}
