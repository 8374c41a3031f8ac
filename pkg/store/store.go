// Package store defines the persistence collaborator of the planner. Every
// record is scoped by an owner id; backends live in sub-packages.
package store

import (
	"context"
	"errors"

	"github.com/harrisonrobin/tripcal/pkg/model"
)

// ErrNotFound is returned when the addressed record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrExists is returned by CreateTasks when a task id is already taken.
var ErrExists = errors.New("record already exists")

// Store is the create/read/update/delete surface over the trips and tasks
// collections. Implementations do no conflict detection: the last write wins.
type Store interface {
	ListTrips(ctx context.Context, owner string) ([]model.Trip, error)
	ListTasks(ctx context.Context, owner string) ([]model.Task, error)

	// UpsertTrip creates the trip or replaces the one with the same id.
	UpsertTrip(ctx context.Context, trip model.Trip) error
	DeleteTrip(ctx context.Context, owner, id string) error
	// SaveTripContent writes only the outline and milestone notes.
	SaveTripContent(ctx context.Context, owner, id string, outline []model.Block, notes []string) error

	// CreateTasks inserts a batch; single creates are a batch of one. An id
	// that is already stored fails the batch.
	CreateTasks(ctx context.Context, tasks []model.Task) error
	UpdateTask(ctx context.Context, task model.Task) error
	SetTaskDone(ctx context.Context, owner string, id int64, done bool) error
	DeleteTask(ctx context.Context, owner string, id int64) error
	// ClearTripLinks nulls the link of every task pointing at tripID.
	ClearTripLinks(ctx context.Context, owner, tripID string) error

	Close() error
}
