package importer

import (
	"strings"
	"testing"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLines(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		content  string
		deadline string
	}{
		{"ordinal and trailing comma", "1. Book flight, 2025-12-10", "Book flight", "2025-12-10"},
		{"compact date", "20251220 Buy gift", "Buy gift", "2025-12-20"},
		{"dotted single digits", "Visa appointment 2026.1.5", "Visa appointment", "2026-01-05"},
		{"slashes", "2025/7/09 - pack bags!", "pack bags", "2025-07-09"},
		{"full-width ordinal", "3、 2025-10-01 取护照。", "取护照", "2025-10-01"},
		{"first date wins", "Ferry 2025-08-01 or 2025-08-03", "Ferry  or 2025-08-03", "2025-08-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseText(tt.line, "T1")
			require.NoError(t, err)
			require.Len(t, res.Drafts, 1, "skipped: %+v", res.Skipped)

			draft := res.Drafts[0]
			assert.Equal(t, tt.content, draft.Content)
			require.NotNil(t, draft.Deadline)
			assert.Equal(t, tt.deadline, draft.Deadline.String())
			assert.Equal(t, model.CategoryImported, draft.Category)
			require.NotNil(t, draft.Link)
			assert.Equal(t, "T1", draft.Link.GroupID)
			assert.False(t, draft.Done)
		})
	}
}

func TestParseSkipsUnusableLines(t *testing.T) {
	text := "no date here\n\n20251301 bad month\n2025-02-30 not a day\n2025-12-10\n  1. 2025-12-11 ,\n"
	res, err := ParseText(text, "T1")
	require.NoError(t, err)
	assert.Empty(t, res.Drafts)
	require.Len(t, res.Skipped, 5)
	assert.Equal(t, 1, res.Skipped[0].Line)
	assert.Equal(t, 3, res.Skipped[1].Line)
	assert.Equal(t, "no content besides the date", res.Skipped[3].Reason)
}

func TestParseMixedBatch(t *testing.T) {
	text := "1. Book flight, 2025-12-10\nno date here\n20251220 Buy gift\n"
	res, err := ParseText(text, "")
	require.NoError(t, err)
	require.Len(t, res.Drafts, 2)
	assert.Equal(t, "Book flight", res.Drafts[0].Content)
	assert.Equal(t, "Buy gift", res.Drafts[1].Content)
	assert.Nil(t, res.Drafts[0].Link, "no trip selected means no link")
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "no date here", res.Skipped[0].Text)
}

func TestParseSkipsOverlongLine(t *testing.T) {
	text := "1. Book flight, 2025-12-10\n" + strings.Repeat("x", 70000) + "\n20251220 Buy gift"
	res, err := ParseText(text, "T1")
	require.NoError(t, err)

	require.Len(t, res.Drafts, 2)
	assert.Equal(t, "Book flight", res.Drafts[0].Content)
	assert.Equal(t, "Buy gift", res.Drafts[1].Content)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 2, res.Skipped[0].Line)
	assert.Equal(t, "line too long", res.Skipped[0].Reason)
	assert.Equal(t, strings.Repeat("x", 80)+"...", res.Skipped[0].Text)
}
