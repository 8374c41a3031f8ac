package gcal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/tripcal/pkg/colors"
	"github.com/harrisonrobin/tripcal/pkg/index"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

type memCalendar struct {
	events  map[string]*calendar.Event
	next    int
	patches int
}

func newMemCalendar() *memCalendar {
	return &memCalendar{events: map[string]*calendar.Event{}}
}

func (m *memCalendar) Get(_ context.Context, id string) (*calendar.Event, error) {
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, &googleapi.Error{Code: http.StatusNotFound}
}

func (m *memCalendar) FindByKey(_ context.Context, key string) (*calendar.Event, error) {
	for _, e := range m.events {
		if e.ExtendedProperties.Private[KeyProperty] == key {
			return e, nil
		}
	}
	return nil, nil
}

func (m *memCalendar) Insert(_ context.Context, e *calendar.Event) (*calendar.Event, error) {
	m.next++
	e.Id = fmt.Sprintf("evt%d", m.next)
	m.events[e.Id] = e
	return e, nil
}

func (m *memCalendar) Patch(_ context.Context, id string, p *calendar.Event) (*calendar.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, &googleapi.Error{Code: http.StatusNotFound}
	}
	m.patches++
	if p.Summary != "" {
		e.Summary = p.Summary
	}
	// Empty fields only reach the server when forced.
	if p.Description != "" || slices.Contains(p.ForceSendFields, "Description") {
		e.Description = p.Description
	}
	if p.ColorId != "" || slices.Contains(p.ForceSendFields, "ColorId") {
		e.ColorId = p.ColorId
	}
	if p.Start != nil {
		e.Start, e.End = p.Start, p.End
	}
	return e, nil
}

func (m *memCalendar) Delete(_ context.Context, id string) error {
	if _, ok := m.events[id]; !ok {
		return &googleapi.Error{Code: http.StatusGone}
	}
	delete(m.events, id)
	return nil
}

func (m *memCalendar) byKey(key string) *calendar.Event {
	e, _ := m.FindByKey(context.Background(), key)
	return e
}

func newTestSyncer(t *testing.T, cal Calendar) *Syncer {
	t.Helper()
	idx, err := index.New("")
	require.NoError(t, err)
	cache, err := colors.NewCache("")
	require.NoError(t, err)
	return NewSyncer(cal, idx, cache, log.New(io.Discard))
}

func TestPrefixes(t *testing.T) {
	assert.Equal(t, "✓", Prefix(workflow.StatusFinish))
	assert.Equal(t, "!", Prefix(workflow.StatusError))
	assert.Equal(t, "‣", Prefix(workflow.StatusProcess))
	assert.Equal(t, "", Prefix(workflow.StatusWait))
}

func TestTripEventIsExclusiveAllDay(t *testing.T) {
	trip := model.Trip{ID: "T1", Name: "Tokyo",
		Start: model.MustParseDate("2025-06-01"), End: model.MustParseDate("2025-06-03")}
	e := TripEvent("trip:T1", trip, workflow.Progress{Done: 1, Total: 2, Percent: 50}, "7")
	assert.Equal(t, "2025-06-01", e.Start.Date)
	assert.Equal(t, "2025-06-04", e.End.Date)
	assert.Contains(t, e.Description, "1/2 (50%)")
	assert.Equal(t, "trip:T1", e.ExtendedProperties.Private[KeyProperty])
}

func TestTaskEvent(t *testing.T) {
	task := model.Task{ID: 5, Content: "Visa", Category: model.CategoryImmediate,
		Deadline: model.MustParseDate("2025-06-02").Ptr(), Link: &model.LinkedInfo{GroupID: "T1", Note: "bring photo"}}
	trip := &model.Trip{ID: "T1", Name: "Tokyo"}

	e, err := TaskEvent("task:5", task, workflow.StatusError, trip, "7")
	require.NoError(t, err)
	assert.Equal(t, "! Visa", e.Summary)
	assert.Equal(t, "2025-06-03", e.End.Date)
	assert.True(t, strings.HasPrefix(e.Description, "Trip: Tokyo\n"))
	assert.Contains(t, e.Description, "bring photo")

	_, err = TaskEvent("task:6", model.Task{ID: 6, Content: "undated"}, workflow.StatusWait, nil, "8")
	assert.Error(t, err)
}

func TestEventNeedsUpdate(t *testing.T) {
	a := &calendar.Event{Summary: "x", ColorId: "1", Start: allDay(model.MustParseDate("2025-01-01")), End: allDay(model.MustParseDate("2025-01-02"))}
	same := *a
	assert.Nil(t, EventNeedsUpdate(a, &same))

	moved := *a
	moved.Summary = "✓ x"
	moved.End = allDay(model.MustParseDate("2025-01-03"))
	patch := EventNeedsUpdate(a, &moved)
	require.NotNil(t, patch)
	assert.Equal(t, "✓ x", patch.Summary)
	assert.Equal(t, "2025-01-03", patch.End.Date)
	assert.Empty(t, patch.ColorId)
	assert.Empty(t, patch.ForceSendFields)
}

func TestEventNeedsUpdateClearsColor(t *testing.T) {
	a := &calendar.Event{Summary: "x", Description: "note", ColorId: "11",
		Start: allDay(model.MustParseDate("2025-01-01")), End: allDay(model.MustParseDate("2025-01-02"))}
	unlinked := *a
	unlinked.ColorId = ""
	unlinked.Description = ""

	patch := EventNeedsUpdate(a, &unlinked)
	require.NotNil(t, patch)
	assert.Empty(t, patch.ColorId)
	assert.ElementsMatch(t, []string{"ColorId", "Description"}, patch.ForceSendFields)

	body, err := patch.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"colorId":""`)
}

func TestSyncCreatesPatchesAndDeletes(t *testing.T) {
	ctx := context.Background()
	cal := newMemCalendar()
	s := newTestSyncer(t, cal)
	today := model.MustParseDate("2025-06-05")

	trip := model.Trip{ID: "T1", Name: "Tokyo", Color: "#e00000",
		Start: model.MustParseDate("2025-06-01"), End: model.MustParseDate("2025-06-03")}
	a := model.Task{ID: 1, Content: "A", Deadline: model.MustParseDate("2025-06-02").Ptr(), Link: &model.LinkedInfo{GroupID: "T1"}}
	b := model.Task{ID: 2, Content: "B", Deadline: model.MustParseDate("2025-06-04").Ptr(), Done: true, Link: &model.LinkedInfo{GroupID: "T1"}}
	loose := model.Task{ID: 3, Content: "Dentist", Deadline: model.MustParseDate("2025-06-10").Ptr()}
	memo := model.Task{ID: 4, Content: "Socks"}

	rep, err := s.Sync(ctx, []model.Task{a, b, loose, memo}, []model.Trip{trip}, today)
	require.NoError(t, err)
	assert.Equal(t, Report{Created: 4}, rep)
	assert.Equal(t, "! A", cal.byKey("task:1").Summary)
	assert.Equal(t, "✓ B", cal.byKey("task:2").Summary)
	assert.Equal(t, "Dentist", cal.byKey("task:3").Summary)
	assert.Equal(t, colors.NoTripColorID, cal.byKey("task:3").ColorId)
	assert.Equal(t, "11", cal.byKey("trip:T1").ColorId)

	rep, err = s.Sync(ctx, []model.Task{a, b, loose}, []model.Trip{trip}, today)
	require.NoError(t, err)
	assert.Equal(t, Report{Unchanged: 4}, rep)

	a.Done = true
	rep, err = s.Sync(ctx, []model.Task{a, b}, []model.Trip{trip}, today)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, 2, rep.Updated, "task A and the trip's progress changed")
	assert.Equal(t, "✓ A", cal.byKey("task:1").Summary)
	assert.Nil(t, cal.byKey("task:3"))
}

func TestSyncRecoversMappingFromCalendar(t *testing.T) {
	ctx := context.Background()
	cal := newMemCalendar()
	trip := model.Trip{ID: "T1", Name: "Tokyo",
		Start: model.MustParseDate("2025-06-01"), End: model.MustParseDate("2025-06-03")}

	_, err := newTestSyncer(t, cal).Sync(ctx, nil, []model.Trip{trip}, trip.Start)
	require.NoError(t, err)

	// A fresh index finds the event through its key property.
	rep, err := newTestSyncer(t, cal).Sync(ctx, nil, []model.Trip{trip}, trip.Start)
	require.NoError(t, err)
	assert.Equal(t, Report{Unchanged: 1}, rep)
	assert.Len(t, cal.events, 1)
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, IsGone(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusGone})))
	assert.False(t, IsGone(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, IsGone(io.EOF))
}
