// Package holiday holds the compiled-in public holiday dataset.
package holiday

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed holidays.yaml
var dataset []byte

// Holiday is a labelled public holiday in one region.
type Holiday struct {
	Date   model.Date `json:"date"`
	Label  string     `json:"label"`
	Region string     `json:"region"`
}

// Source answers point lookups by calendar day.
type Source interface {
	Lookup(d model.Date) (Holiday, bool)
}

// Table is an immutable date-keyed holiday set.
type Table struct {
	Version string
	byDate  map[string]Holiday
}

type document struct {
	Version  string `yaml:"version"`
	Holidays []struct {
		Date   string `yaml:"date"`
		Label  string `yaml:"label"`
		Region string `yaml:"region"`
	} `yaml:"holidays"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the embedded dataset. It panics if the embedded file is
// malformed, which can only happen at build time.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(dataset)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("holiday: embedded dataset: %v", defaultErr))
	}
	return defaultTable
}

// Parse decodes a YAML holiday document.
func Parse(b []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode holidays: %w", err)
	}
	entries := make([]Holiday, 0, len(doc.Holidays))
	for i, h := range doc.Holidays {
		d, err := model.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holidays[%d]: %w", i, err)
		}
		entries = append(entries, Holiday{Date: d, Label: h.Label, Region: h.Region})
	}
	t := NewTable(entries...)
	t.Version = doc.Version
	return t, nil
}

// NewTable builds a table from entries. A later entry for the same date wins.
func NewTable(entries ...Holiday) *Table {
	t := &Table{byDate: make(map[string]Holiday, len(entries))}
	for _, h := range entries {
		t.byDate[h.Date.String()] = h
	}
	return t
}

func (t *Table) Lookup(d model.Date) (Holiday, bool) {
	if t == nil {
		return Holiday{}, false
	}
	h, ok := t.byDate[d.String()]
	return h, ok
}

// All returns every holiday in date order.
func (t *Table) All() []Holiday {
	all := make([]Holiday, 0, len(t.byDate))
	for _, h := range t.byDate {
		all = append(all, h)
	}
	slices.SortFunc(all, func(a, b Holiday) int { return a.Date.Compare(b.Date) })
	return all
}

func (t *Table) Len() int {
	return len(t.byDate)
}
