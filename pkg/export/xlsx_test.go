package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixture() ([]model.Task, []model.Trip) {
	trips := []model.Trip{
		{ID: "T1", Name: "Tokyo", Start: model.MustParseDate("2025-06-01"), End: model.MustParseDate("2025-06-03")},
		{ID: "T2", Name: "Tokyo", Start: model.MustParseDate("2025-09-01"), End: model.MustParseDate("2025-09-02")},
	}
	tasks := []model.Task{
		{ID: 1, Content: "A", Category: model.CategoryImportant, Deadline: model.MustParseDate("2025-06-02").Ptr(), Link: &model.LinkedInfo{GroupID: "T1"}},
		{ID: 2, Content: "B", Category: model.CategoryReminder, Deadline: model.MustParseDate("2025-06-04").Ptr(), Done: true, Link: &model.LinkedInfo{GroupID: "T1"}},
		{ID: 3, Content: "Adapter", Category: model.CategoryMemo, Link: &model.LinkedInfo{GroupID: "T1"}},
		{ID: 4, Content: "Dentist", Category: model.CategoryImmediate, Deadline: model.MustParseDate("2025-06-10").Ptr()},
	}
	return tasks, trips
}

func TestWorkbookSheets(t *testing.T) {
	tasks, trips := fixture()
	f, err := Workbook(tasks, trips, order.ModeDate, model.MustParseDate("2025-06-05"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{BoardSheet, "Tokyo", "Tokyo (2)"}, f.GetSheetList())

	board, err := f.GetRows(BoardSheet)
	require.NoError(t, err)
	require.Len(t, board, 5)
	assert.Equal(t, []string{"Category", "Content", "Deadline", "Done", "Trip"}, board[0])
	assert.Equal(t, "Dentist", board[1][1], "immediate comes first")
	assert.Equal(t, "Tokyo", board[2][4])

	timeline, err := f.GetRows("Tokyo")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(timeline[0][0], "Tokyo  2025-06-01..2025-06-03  33%"))
	assert.Equal(t, []string{"1", "A", "2025-06-02", "important", "overdue"}, timeline[2])
	assert.Equal(t, []string{"2", "B", "2025-06-04", "reminder", "done"}, timeline[3])
	assert.Equal(t, "Adapter", timeline[6][1])
}

func TestWriteProducesReadableFile(t *testing.T) {
	tasks, trips := fixture()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tasks, trips, order.ModePriority, model.MustParseDate("2025-06-05")))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 3)
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"Board": true}
	assert.Equal(t, "Rome_Florence", sheetName("Rome/Florence", used))
	assert.Equal(t, "Trip", sheetName("  ", used))
	assert.Equal(t, "Board (2)", sheetName("Board", used))

	long := strings.Repeat("x", 40)
	got := sheetName(long, map[string]bool{strings.Repeat("x", 31): true})
	assert.Len(t, got, 31)
	assert.True(t, strings.HasSuffix(got, " (2)"))
}
