// Package export writes the planner's views to an xlsx workbook: one board
// sheet with every task and one sheet per trip timeline.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
	"github.com/xuri/excelize/v2"
)

const (
	BoardSheet    = "Board"
	maxSheetName  = 31
	defaultSheet  = "Sheet1"
	headerFill    = "#1890FF"
	overdueFont   = "#F5222D"
	finishedFont  = "#8C8C8C"
	contentColumn = "B"
)

var (
	boardHeader    = []any{"Category", "Content", "Deadline", "Done", "Trip"}
	timelineHeader = []any{"#", "Content", "Deadline", "Category", "Status"}
	memoHeader     = []any{"", "Memo", "", "Category", "Done"}
)

type styles struct {
	header, overdue, finished int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	}); err != nil {
		return s, err
	}
	if s.overdue, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: overdueFont, Bold: true}}); err != nil {
		return s, err
	}
	if s.finished, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: finishedFont, Strike: true}}); err != nil {
		return s, err
	}
	return s, nil
}

// Workbook builds the workbook in memory.
func Workbook(tasks []model.Task, trips []model.Trip, mode order.Mode, today model.Date) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName(defaultSheet, BoardSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeBoard(f, st, tasks, trips); err != nil {
		f.Close()
		return nil, err
	}

	used := map[string]bool{BoardSheet: true}
	for _, trip := range order.Trips(trips) {
		name := sheetName(trip.Name, used)
		used[name] = true
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeTimeline(f, st, name, trip, tasks, mode, today); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	}
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, tasks []model.Task, trips []model.Trip, mode order.Mode, today model.Date) error {
	f, err := Workbook(tasks, trips, mode, today)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func styleRow(f *excelize.File, sheet string, row, cols, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(cols, row)
	return f.SetCellStyle(sheet, first, last, style)
}

func writeBoard(f *excelize.File, st styles, tasks []model.Task, trips []model.Trip) error {
	if err := writeRow(f, BoardSheet, 1, boardHeader); err != nil {
		return err
	}
	if err := styleRow(f, BoardSheet, 1, len(boardHeader), st.header); err != nil {
		return err
	}

	row := 2
	for _, c := range model.Categories {
		for _, t := range order.Board(tasks, c) {
			tripName := ""
			if trip, ok := model.LinkedTrip(t, trips); ok {
				tripName = trip.Name
			}
			values := []any{string(t.Category), t.Content, deadline(t), t.Done, tripName}
			if err := writeRow(f, BoardSheet, row, values); err != nil {
				return err
			}
			if t.Done {
				if err := styleRow(f, BoardSheet, row, len(values), st.finished); err != nil {
					return err
				}
			}
			row++
		}
	}
	return f.SetColWidth(BoardSheet, contentColumn, contentColumn, 40)
}

func writeTimeline(f *excelize.File, st styles, sheet string, trip model.Trip, tasks []model.Task, mode order.Mode, today model.Date) error {
	p := workflow.ProgressOf(trip.ID, tasks)
	title := fmt.Sprintf("%s  %s..%s  %d%%", trip.Name, trip.Start, trip.End, p.Percent)
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	if err := writeRow(f, sheet, 2, timelineHeader); err != nil {
		return err
	}
	if err := styleRow(f, sheet, 2, len(timelineHeader), st.header); err != nil {
		return err
	}

	row := 3
	for i, step := range workflow.Steps(trip.ID, tasks, mode, today) {
		values := []any{i + 1, step.Task.Content, deadline(step.Task), string(step.Task.Category), step.Status.Label()}
		if err := writeRow(f, sheet, row, values); err != nil {
			return err
		}
		switch step.Status {
		case workflow.StatusError:
			if err := styleRow(f, sheet, row, len(values), st.overdue); err != nil {
				return err
			}
		case workflow.StatusFinish:
			if err := styleRow(f, sheet, row, len(values), st.finished); err != nil {
				return err
			}
		}
		row++
	}

	memos := workflow.Memos(trip.ID, tasks)
	if len(memos) > 0 {
		row++
		if err := writeRow(f, sheet, row, memoHeader); err != nil {
			return err
		}
		if err := styleRow(f, sheet, row, len(memoHeader), st.header); err != nil {
			return err
		}
		row++
		for _, m := range memos {
			if err := writeRow(f, sheet, row, []any{"", m.Content, "", string(m.Category), m.Done}); err != nil {
				return err
			}
			row++
		}
	}
	return f.SetColWidth(sheet, contentColumn, contentColumn, 40)
}

func deadline(t model.Task) string {
	if !t.Dated() {
		return ""
	}
	return t.Deadline.String()
}

// sheetName makes a trip name acceptable to Excel and unique in the workbook.
func sheetName(name string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "Trip"
	}
	clean = truncate(clean, maxSheetName)

	candidate := clean
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(clean, maxSheetName-len(suffix)) + suffix
	}
	return candidate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
