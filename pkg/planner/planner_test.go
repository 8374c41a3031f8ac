package planner

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/autosave"
	"github.com/harrisonrobin/tripcal/pkg/holiday"
	"github.com/harrisonrobin/tripcal/pkg/importer"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/store"
	"github.com/harrisonrobin/tripcal/pkg/store/filestore"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOffline = errors.New("offline")

// flakyStore wraps an in-memory filestore, counts calls and fails the
// operations named in fail.
type flakyStore struct {
	*filestore.Store
	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
}

func newFlakyStore(t *testing.T) *flakyStore {
	t.Helper()
	fs, err := filestore.Open("")
	require.NoError(t, err)
	return &flakyStore{Store: fs, fail: map[string]error{}, calls: map[string]int{}}
}

func (s *flakyStore) hit(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	return s.fail[op]
}

func (s *flakyStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *flakyStore) CreateTasks(ctx context.Context, tasks []model.Task) error {
	if err := s.hit("CreateTasks"); err != nil {
		return err
	}
	return s.Store.CreateTasks(ctx, tasks)
}

func (s *flakyStore) UpdateTask(ctx context.Context, task model.Task) error {
	if err := s.hit("UpdateTask"); err != nil {
		return err
	}
	return s.Store.UpdateTask(ctx, task)
}

func (s *flakyStore) SetTaskDone(ctx context.Context, owner string, id int64, done bool) error {
	if err := s.hit("SetTaskDone"); err != nil {
		return err
	}
	return s.Store.SetTaskDone(ctx, owner, id, done)
}

func (s *flakyStore) DeleteTask(ctx context.Context, owner string, id int64) error {
	if err := s.hit("DeleteTask"); err != nil {
		return err
	}
	return s.Store.DeleteTask(ctx, owner, id)
}

func (s *flakyStore) UpsertTrip(ctx context.Context, trip model.Trip) error {
	if err := s.hit("UpsertTrip"); err != nil {
		return err
	}
	return s.Store.UpsertTrip(ctx, trip)
}

func (s *flakyStore) DeleteTrip(ctx context.Context, owner, id string) error {
	if err := s.hit("DeleteTrip"); err != nil {
		return err
	}
	return s.Store.DeleteTrip(ctx, owner, id)
}

func (s *flakyStore) ClearTripLinks(ctx context.Context, owner, tripID string) error {
	if err := s.hit("ClearTripLinks"); err != nil {
		return err
	}
	return s.Store.ClearTripLinks(ctx, owner, tripID)
}

func (s *flakyStore) SaveTripContent(ctx context.Context, owner, id string, outline []model.Block, notes []string) error {
	if err := s.hit("SaveTripContent"); err != nil {
		return err
	}
	return s.Store.SaveTripContent(ctx, owner, id, outline, notes)
}

type manualTimer struct{ stopped bool }

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

var fixedNow = time.Date(2025, 6, 5, 9, 30, 0, 0, time.UTC)

func newPlanner(t *testing.T, st store.Store) *Planner {
	t.Helper()
	return New(st, "u1", Options{
		Holidays: holiday.NewTable(),
		// Autosave only fires on Flush in tests.
		Autosave: autosave.NewSchedulerWithTimer(time.Second, func(time.Duration, func()) autosave.Timer { return &manualTimer{} }),
		IDs:      model.NewIDClockAt(func() time.Time { return fixedNow }),
		Logger:   log.New(io.Discard),
		Now:      func() time.Time { return fixedNow },
	})
}

func date(s string) *model.Date { return model.MustParseDate(s).Ptr() }

func TestCreateTaskAssignsIDAndDefaultCategory(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	a, err := p.CreateTask(ctx, model.Task{Content: "passport photos"})
	require.NoError(t, err)
	b, err := p.CreateTask(ctx, model.Task{Content: "adapter", Category: model.CategoryMemo})
	require.NoError(t, err)

	assert.Equal(t, model.DefaultCategory, a.Category)
	assert.Equal(t, "u1", a.Owner)
	assert.Equal(t, fixedNow.UnixMilli(), a.ID)
	assert.Equal(t, a.ID+1, b.ID, "ids stay unique inside one millisecond")

	persisted, err := st.ListTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestCreateTaskValidationMakesNoStoreCall(t *testing.T) {
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	_, err := p.CreateTask(context.Background(), model.Task{Content: "   "})
	assert.True(t, model.IsValidation(err))
	assert.Zero(t, st.count("CreateTasks"))
	assert.Empty(t, p.Tasks())
}

func TestCreateTaskFailureLeavesStateUntouched(t *testing.T) {
	st := newFlakyStore(t)
	st.fail["CreateTasks"] = errOffline
	p := newPlanner(t, st)

	_, err := p.CreateTask(context.Background(), model.Task{Content: "x"})
	assert.ErrorIs(t, err, errOffline)
	assert.Empty(t, p.Tasks())
}

func TestToggleDoneOptimisticAndRevert(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	task, err := p.CreateTask(ctx, model.Task{Content: "check in"})
	require.NoError(t, err)

	got, err := p.ToggleDone(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)

	st.fail["SetTaskDone"] = errOffline
	_, err = p.ToggleDone(ctx, task.ID)
	assert.ErrorIs(t, err, errOffline)

	local, ok := p.Task(task.ID)
	require.True(t, ok)
	assert.True(t, local.Done, "failed toggle is rolled back")

	_, err = p.ToggleDone(ctx, 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateAndDeleteTask(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	task, err := p.CreateTask(ctx, model.Task{Content: "book hotel"})
	require.NoError(t, err)

	st.fail["UpdateTask"] = errOffline
	edited := task
	edited.Content = "book ryokan"
	_, err = p.UpdateTask(ctx, edited)
	assert.ErrorIs(t, err, errOffline)
	local, _ := p.Task(task.ID)
	assert.Equal(t, "book hotel", local.Content)

	delete(st.fail, "UpdateTask")
	_, err = p.UpdateTask(ctx, edited)
	require.NoError(t, err)
	local, _ = p.Task(task.ID)
	assert.Equal(t, "book ryokan", local.Content)

	st.fail["DeleteTask"] = errOffline
	assert.Error(t, p.DeleteTask(ctx, task.ID))
	_, ok := p.Task(task.ID)
	assert.True(t, ok)

	delete(st.fail, "DeleteTask")
	require.NoError(t, p.DeleteTask(ctx, task.ID))
	_, ok = p.Task(task.ID)
	assert.False(t, ok)
}

func tokyo() model.Trip {
	return model.Trip{ID: "T1", Name: "Tokyo",
		Start: model.MustParseDate("2025-06-01"), End: model.MustParseDate("2025-06-03")}
}

func TestDeleteTripUnlinksTasks(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	_, err := p.SaveTrip(ctx, tokyo())
	require.NoError(t, err)
	linked, err := p.CreateTask(ctx, model.Task{Content: "visa", Link: &model.LinkedInfo{GroupID: "T1"}})
	require.NoError(t, err)

	require.NoError(t, p.DeleteTrip(ctx, "T1"))
	assert.Empty(t, p.Trips())

	local, ok := p.Task(linked.ID)
	require.True(t, ok, "tasks survive trip deletion")
	assert.Nil(t, local.Link)

	persisted, err := st.ListTasks(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, persisted[0].Link)
}

func TestDeleteTripFailureKeepsTrip(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)
	_, err := p.SaveTrip(ctx, tokyo())
	require.NoError(t, err)

	st.fail["DeleteTrip"] = errOffline
	assert.ErrorIs(t, p.DeleteTrip(ctx, "T1"), errOffline)
	assert.Len(t, p.Trips(), 1)
	assert.Zero(t, st.count("ClearTripLinks"))
}

func TestSaveTripValidatesFirst(t *testing.T) {
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	bad := tokyo()
	bad.End = model.MustParseDate("2025-05-01")
	_, err := p.SaveTrip(context.Background(), bad)
	assert.True(t, model.IsValidation(err))
	assert.Zero(t, st.count("UpsertTrip"))
}

func TestImportBatch(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)
	_, err := p.SaveTrip(ctx, tokyo())
	require.NoError(t, err)

	res, err := p.Import(ctx, "1. Book flight, 2025-12-10\n20251220 Buy gift\nno date here\n", "T1")
	require.NoError(t, err)
	require.Len(t, res.Drafts, 2)
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, 1, st.count("CreateTasks"), "one batch")

	tasks := p.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "Book flight", tasks[0].Content)
	assert.Equal(t, "2025-12-10", tasks[0].Deadline.String())
	assert.Equal(t, model.ImportCategory, tasks[1].Category)
	assert.Equal(t, "T1", tasks[1].TripID())
	assert.NotEqual(t, tasks[0].ID, tasks[1].ID)
}

func TestImportWithoutDraftsIsValidationFailure(t *testing.T) {
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	res, err := p.Import(context.Background(), "no date here\nnor here", "")
	assert.True(t, model.IsValidation(err))
	assert.ErrorIs(t, err, importer.ErrNoDrafts)
	assert.Len(t, res.Skipped, 2)
	assert.Zero(t, st.count("CreateTasks"))
}

func TestImportIntoUnknownTrip(t *testing.T) {
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	res, err := p.Import(context.Background(), "2025-12-10 Book flight", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Nil(t, res)
	assert.Zero(t, st.count("CreateTasks"))
	assert.Empty(t, p.Tasks())
}

func TestContentEditsCoalesce(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)
	_, err := p.SaveTrip(ctx, tokyo())
	require.NoError(t, err)

	require.NoError(t, p.EditOutline("T1", []model.Block{{Kind: model.BlockText, Text: "draft"}}))
	require.NoError(t, p.AddMilestoneNote("T1", "sumo"))
	require.NoError(t, p.AddMilestoneNote("T1", "onsen"))
	require.NoError(t, p.RemoveMilestoneNote("T1", 0))
	assert.True(t, p.ContentPending("T1"))
	assert.Zero(t, st.count("SaveTripContent"))

	p.FlushContent()
	assert.Equal(t, 1, st.count("SaveTripContent"))

	trips, err := st.ListTrips(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"onsen"}, trips[0].MilestoneNotes)
	assert.Equal(t, "draft", trips[0].Outline[0].Text)

	assert.True(t, model.IsValidation(p.RemoveMilestoneNote("T1", 5)))
	assert.True(t, model.IsValidation(p.AddMilestoneNote("T1", " ")))
	assert.ErrorIs(t, p.EditOutline("nope", nil), store.ErrNotFound)
}

func TestSaveTripKeepsContent(t *testing.T) {
	ctx := context.Background()
	p := newPlanner(t, newFlakyStore(t))
	_, err := p.SaveTrip(ctx, tokyo())
	require.NoError(t, err)
	require.NoError(t, p.AddMilestoneNote("T1", "sumo"))

	renamed := tokyo()
	renamed.Name = "Tokyo & Nikko"
	saved, err := p.SaveTrip(ctx, renamed)
	require.NoError(t, err)
	assert.Equal(t, []string{"sumo"}, saved.MilestoneNotes)
}

// Trip T1 spans 2025-06-01..03 with dated tasks A (06-02, open) and
// B (06-04, done); today is 06-05.
func TestTripScenario(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	p := newPlanner(t, st)

	_, err := p.SaveTrip(ctx, tokyo())
	require.NoError(t, err)
	a, err := p.CreateTask(ctx, model.Task{Content: "A", Deadline: date("2025-06-02"), Link: &model.LinkedInfo{GroupID: "T1"}})
	require.NoError(t, err)
	b, err := p.CreateTask(ctx, model.Task{Content: "B", Deadline: date("2025-06-04"), Link: &model.LinkedInfo{GroupID: "T1"}})
	require.NoError(t, err)
	_, err = p.ToggleDone(ctx, b.ID)
	require.NoError(t, err)

	day := p.Day(model.MustParseDate("2025-06-02"))
	require.Len(t, day.Trips, 1)
	require.Len(t, day.Tasks, 1)
	assert.Equal(t, a.ID, day.Tasks[0].ID)

	steps, err := p.Timeline("T1", order.ModeDate, p.Today())
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, workflow.StatusError, steps[0].Status)
	assert.Equal(t, workflow.StatusFinish, steps[1].Status)
	assert.Equal(t, -1, workflow.Active(steps))

	assert.Equal(t, workflow.Progress{Done: 1, Total: 2, Percent: 50}, p.Progress("T1"))

	_, err = p.Timeline("missing", order.ModeDate, p.Today())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadObservesExistingIDs(t *testing.T) {
	ctx := context.Background()
	st := newFlakyStore(t)
	future := fixedNow.UnixMilli() + 1000
	require.NoError(t, st.Store.CreateTasks(ctx, []model.Task{{ID: future, Owner: "u1", Content: "old"}}))

	p := newPlanner(t, st)
	require.NoError(t, p.Load(ctx))
	created, err := p.CreateTask(ctx, model.Task{Content: "new"})
	require.NoError(t, err)
	assert.Greater(t, created.ID, future)
}
