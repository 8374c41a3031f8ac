package planner

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/store"
)

// contentWriteTimeout bounds one autosave write; it runs off the caller's
// context because the caller has usually returned by then.
const contentWriteTimeout = 10 * time.Second

// EditOutline replaces the trip's outline locally and schedules a write.
func (p *Planner) EditOutline(id string, outline []model.Block) error {
	return p.editContent(id, func(t *model.Trip) error {
		t.Outline = slices.Clone(outline)
		return nil
	})
}

// AddMilestoneNote appends a note to the trip.
func (p *Planner) AddMilestoneNote(id, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return &model.ValidationError{Field: "note", Err: fmt.Errorf("must not be empty")}
	}
	return p.editContent(id, func(t *model.Trip) error {
		t.MilestoneNotes = append(t.MilestoneNotes, note)
		return nil
	})
}

// RemoveMilestoneNote drops the note at index i.
func (p *Planner) RemoveMilestoneNote(id string, i int) error {
	return p.editContent(id, func(t *model.Trip) error {
		if i < 0 || i >= len(t.MilestoneNotes) {
			return &model.ValidationError{Field: "note", Err: fmt.Errorf("index %d out of range", i)}
		}
		t.MilestoneNotes = slices.Delete(t.MilestoneNotes, i, i+1)
		return nil
	})
}

func (p *Planner) editContent(id string, edit func(*model.Trip) error) error {
	p.mu.Lock()
	i := p.tripIndex(id)
	if i < 0 {
		p.mu.Unlock()
		return fmt.Errorf("edit trip %s: %w", id, store.ErrNotFound)
	}
	if err := edit(&p.trips[i]); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	p.autosave.Schedule(id, func() { p.writeContent(id) })
	return nil
}

// writeContent persists whatever the trip's content is when the quiet
// period ends.
func (p *Planner) writeContent(id string) {
	trip, ok := p.Trip(id)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), contentWriteTimeout)
	defer cancel()
	if err := p.store.SaveTripContent(ctx, p.owner, id, trip.Outline, trip.MilestoneNotes); err != nil {
		p.logger.Errorf("autosave of trip %s failed: %v", id, err)
		return
	}
	p.logger.Debugf("autosaved trip %s", id)
}

// ContentPending reports whether the trip has an unsaved content edit.
func (p *Planner) ContentPending(id string) bool {
	return p.autosave.Pending(id)
}

// FlushContent writes every pending content edit now.
func (p *Planner) FlushContent() {
	p.autosave.Flush()
}
