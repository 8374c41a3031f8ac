// Package agenda indexes tasks and trips by calendar day.
package agenda

import (
	"slices"

	"github.com/harrisonrobin/tripcal/pkg/holiday"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
)

// HorizonDays is the length of the rolling list view, today included.
const HorizonDays = 60

// Bucket holds everything active on one calendar day.
type Bucket struct {
	Tasks []model.Task `json:"tasks"`
	Trips []model.Trip `json:"groups"`
}

func (b *Bucket) hasTrip(id string) bool {
	for _, t := range b.Trips {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Index maps a YYYY-MM-DD key to its bucket. Days with nothing on them have
// no entry.
type Index map[string]*Bucket

// Day is the resolved view of a single calendar day.
type Day struct {
	Date    model.Date       `json:"date"`
	Tasks   []model.Task     `json:"tasks"`
	Trips   []model.Trip     `json:"groups"`
	Holiday *holiday.Holiday `json:"holiday,omitempty"`
}

// Empty reports whether the day has neither records nor a holiday.
func (d Day) Empty() bool {
	return len(d.Tasks) == 0 && len(d.Trips) == 0 && d.Holiday == nil
}

// Build indexes dated tasks by deadline and expands every trip over its
// inclusive range. A trip appears at most once per day even when the input
// repeats it. Undated tasks are left out.
func Build(tasks []model.Task, trips []model.Trip) Index {
	idx := make(Index)
	for _, task := range tasks {
		if !task.Dated() {
			continue
		}
		b := idx.bucket(task.Deadline.String())
		b.Tasks = append(b.Tasks, task)
	}
	for _, trip := range trips {
		for _, d := range trip.Days() {
			b := idx.bucket(d.String())
			if !b.hasTrip(trip.ID) {
				b.Trips = append(b.Trips, trip)
			}
		}
	}
	return idx
}

func (idx Index) bucket(key string) *Bucket {
	b, ok := idx[key]
	if !ok {
		b = &Bucket{}
		idx[key] = b
	}
	return b
}

// Day is the point lookup used by calendar cells and the day detail view.
// Trips are reported over their full range; nothing is clipped here.
func (idx Index) Day(d model.Date, holidays holiday.Source) Day {
	day := Day{Date: d}
	if b, ok := idx[d.String()]; ok {
		day.Tasks = order.DayTasks(b.Tasks)
		day.Trips = slices.Clone(b.Trips)
	}
	if holidays != nil {
		if h, ok := holidays.Lookup(d); ok {
			day.Holiday = &h
		}
	}
	return day
}

// Horizon lists the days of [today, today+HorizonDays-1] that carry a bucket
// or a holiday, in date order. Days with neither are skipped, so the result
// is sparse.
func (idx Index) Horizon(today model.Date, holidays holiday.Source) []Day {
	var days []Day
	for i := 0; i < HorizonDays; i++ {
		day := idx.Day(today.AddDays(i), holidays)
		if day.Empty() {
			continue
		}
		days = append(days, day)
	}
	return days
}

// Dates returns the indexed day keys in ascending order.
func (idx Index) Dates() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
