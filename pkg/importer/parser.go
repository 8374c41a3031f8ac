// Package importer turns pasted free text into draft tasks.
package importer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/harrisonrobin/tripcal/pkg/model"
)

// ErrNoDrafts is returned by callers when a batch produced nothing to create.
var ErrNoDrafts = errors.New("no importable lines: each line needs a date such as 2025-12-10 or 20251210")

var (
	// Either YYYY<sep>M<sep>D with -, . or / separators, or a compact YYYYMMDD.
	dateRegex    = regexp.MustCompile(`(\d{4})[-./](\d{1,2})[-./](\d{1,2})|(\d{8})`)
	ordinalRegex = regexp.MustCompile(`^\s*\d+(?:\.|、)\s*`)
)

// MaxLineBytes is the longest line considered for a draft. Longer lines are
// skipped rather than parsed.
const MaxLineBytes = 4096

const clipRunes = 80

// SkippedLine records a non-blank line that produced no draft.
type SkippedLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Result is the outcome of parsing one batch.
type Result struct {
	Drafts  []model.Task  `json:"drafts"`
	Skipped []SkippedLine `json:"skipped,omitempty"`
}

// ParseText parses a pasted block of text. See Parse.
func ParseText(text, tripID string) (*Result, error) {
	return Parse(strings.NewReader(text), tripID)
}

// Parse reads one task per line. A line becomes a draft when it carries a
// date and some content besides it; every other non-blank line is skipped
// without failing the batch. Drafts get the import category and, when
// tripID is set, a link to that trip. Ids and owners are assigned at create.
func Parse(r io.Reader, tripID string) (*Result, error) {
	reader := bufio.NewReader(r)
	res := &Result{}
	lineNo := 0

	for {
		raw, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if raw == "" && err == io.EOF {
			break
		}
		lineNo++
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
		case len(line) > MaxLineBytes:
			res.Skipped = append(res.Skipped, SkippedLine{Line: lineNo, Text: clip(line), Reason: "line too long"})
		default:
			draft, reason := parseLine(line)
			if reason != "" {
				res.Skipped = append(res.Skipped, SkippedLine{Line: lineNo, Text: line, Reason: reason})
				break
			}
			if tripID != "" {
				draft.Link = &model.LinkedInfo{GroupID: tripID}
			}
			res.Drafts = append(res.Drafts, draft)
		}
		if err == io.EOF {
			break
		}
	}

	return res, nil
}

// clip shortens an over-long line for the skip report.
func clip(line string) string {
	n := 0
	for i := range line {
		if n == clipRunes {
			return line[:i] + "..."
		}
		n++
	}
	return line
}

func parseLine(line string) (model.Task, string) {
	loc := dateRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return model.Task{}, "no date found"
	}

	var year, month, day string
	if loc[8] >= 0 {
		compact := line[loc[8]:loc[9]]
		year, month, day = compact[:4], compact[4:6], compact[6:]
	} else {
		year, month, day = line[loc[2]:loc[3]], line[loc[4]:loc[5]], line[loc[6]:loc[7]]
	}

	deadline, err := normalizeDate(year, month, day)
	if err != nil {
		return model.Task{}, err.Error()
	}

	content := line[:loc[0]] + line[loc[1]:]
	content = ordinalRegex.ReplaceAllString(content, "")
	content = strings.TrimFunc(content, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if content == "" {
		return model.Task{}, "no content besides the date"
	}

	return model.Task{
		Content:  content,
		Deadline: &deadline,
		Category: model.ImportCategory,
	}, ""
}

func normalizeDate(year, month, day string) (model.Date, error) {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return model.ParseDate(fmt.Sprintf("%s-%02d-%02d", year, m, d))
}
