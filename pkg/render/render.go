// Package render draws planner views for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harrisonrobin/tripcal/pkg/agenda"
	"github.com/harrisonrobin/tripcal/pkg/colors"
	"github.com/harrisonrobin/tripcal/pkg/importer"
	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/workflow"
)

var marks = map[workflow.Status]string{
	workflow.StatusFinish:  "✓",
	workflow.StatusError:   "!",
	workflow.StatusProcess: "‣",
	workflow.StatusWait:    "·",
}

// Renderer holds the styles for one output stream.
type Renderer struct {
	lg      *lipgloss.Renderer
	title   lipgloss.Style
	muted   lipgloss.Style
	done    lipgloss.Style
	overdue lipgloss.Style
	active  lipgloss.Style
	holiday lipgloss.Style
}

// New builds a renderer for w. dark selects the dark-background palette
// regardless of what the terminal reports.
func New(w io.Writer, dark bool) *Renderer {
	lg := lipgloss.NewRenderer(w)
	lg.SetHasDarkBackground(dark)
	return &Renderer{
		lg: lg,
		title: lg.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1D39C4", Dark: "#5B8DEF"}),
		muted: lg.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#8C8C8C", Dark: "#888888"}),
		done: lg.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#8C8C8C", Dark: "#666666"}),
		overdue: lg.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#CF1322", Dark: "#FF6B6B"}),
		active: lg.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#096DD9", Dark: "#69C0FF"}),
		holiday: lg.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#D4380D", Dark: "#FF9C6E"}),
	}
}

func (r *Renderer) category(c model.Category) string {
	return r.lg.NewStyle().Foreground(lipgloss.Color(colors.Category(c))).Render(fmt.Sprintf("%-9s", c))
}

func (r *Renderer) swatch(t model.Trip) string {
	hex := t.Color
	if hex == "" {
		hex = colors.DefaultTrip
	}
	return r.lg.NewStyle().Foreground(lipgloss.Color(hex)).Render("■")
}

func (r *Renderer) task(t model.Task) string {
	box := "[ ]"
	content := t.Content
	if t.Done {
		box = "[x]"
		content = r.done.Render(content)
	}
	line := fmt.Sprintf("%s #%d %s %s", box, t.ID, r.category(t.Category), content)
	if t.Dated() {
		line += " " + r.muted.Render(t.Deadline.String())
	}
	return line
}

func dateRange(t model.Trip) string {
	return fmt.Sprintf("%s..%s", t.Start, t.End)
}

// Day lists everything on one date.
func (r *Renderer) Day(d agenda.Day) string {
	lines := []string{r.title.Render(d.Date.String() + " " + d.Date.Weekday().String()[:3])}
	if d.Holiday != nil {
		lines = append(lines, "  "+r.holiday.Render(fmt.Sprintf("%s (%s)", d.Holiday.Label, d.Holiday.Region)))
	}
	for _, t := range d.Trips {
		lines = append(lines, fmt.Sprintf("  %s %s %s", r.swatch(t), t.Name, r.muted.Render(dateRange(t))))
	}
	for _, t := range d.Tasks {
		lines = append(lines, "  "+r.task(t))
	}
	if d.Empty() {
		lines = append(lines, "  "+r.muted.Render("nothing planned"))
	}
	return strings.Join(lines, "\n")
}

// Horizon renders the rolling list, leaving out days with nothing on them.
func (r *Renderer) Horizon(days []agenda.Day) string {
	var blocks []string
	for _, d := range days {
		if d.Empty() {
			continue
		}
		blocks = append(blocks, r.Day(d))
	}
	if len(blocks) == 0 {
		return r.muted.Render(fmt.Sprintf("nothing planned in the next %d days", agenda.HorizonDays))
	}
	return strings.Join(blocks, "\n\n")
}

// Board renders one category column.
func (r *Renderer) Board(c model.Category, tasks []model.Task) string {
	lines := []string{r.title.Render(fmt.Sprintf("%s (%d)", c, len(tasks)))}
	for _, t := range tasks {
		lines = append(lines, "  "+r.task(t))
	}
	return strings.Join(lines, "\n")
}

// Trips renders the trip list with completion for each.
func (r *Renderer) Trips(trips []model.Trip, progress func(string) workflow.Progress) string {
	if len(trips) == 0 {
		return r.muted.Render("no trips")
	}
	lines := make([]string, 0, len(trips))
	for _, t := range trips {
		p := progress(t.ID)
		pin := " "
		if t.Pinned {
			pin = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s %-12s %s %s %s",
			pin, r.swatch(t), t.ID, t.Name,
			r.muted.Render(dateRange(t)),
			r.muted.Render(fmt.Sprintf("%d/%d %d%%", p.Done, p.Total, p.Percent))))
	}
	return strings.Join(lines, "\n")
}

// Timeline renders a trip's steps with their status marks.
func (r *Renderer) Timeline(trip model.Trip, steps []workflow.Step) string {
	lines := []string{r.title.Render(trip.Name) + " " + r.muted.Render(dateRange(trip))}
	if len(steps) == 0 {
		lines = append(lines, "  "+r.muted.Render("no dated tasks"))
	}
	for _, s := range steps {
		text := fmt.Sprintf("%s %s #%d %s (%s)", marks[s.Status], s.Task.Deadline, s.Task.ID, s.Task.Content, s.Status.Label())
		switch s.Status {
		case workflow.StatusFinish:
			text = r.done.Render(text)
		case workflow.StatusError:
			text = r.overdue.Render(text)
		case workflow.StatusProcess:
			text = r.active.Render(text)
		}
		lines = append(lines, "  "+text)
	}
	if len(trip.MilestoneNotes) > 0 {
		lines = append(lines, r.title.Render("Notes"))
		for i, n := range trip.MilestoneNotes {
			lines = append(lines, fmt.Sprintf("  %d. %s", i+1, n))
		}
	}
	return strings.Join(lines, "\n")
}

// Memos renders a trip's undated tasks.
func (r *Renderer) Memos(trip model.Trip, memos []model.Task) string {
	lines := []string{r.title.Render(trip.Name + " memos")}
	if len(memos) == 0 {
		lines = append(lines, "  "+r.muted.Render("none"))
	}
	for _, t := range memos {
		lines = append(lines, "  "+r.task(t))
	}
	return strings.Join(lines, "\n")
}

// Imported summarises an import batch.
func (r *Renderer) Imported(res *importer.Result) string {
	lines := []string{r.title.Render(fmt.Sprintf("imported %d task(s)", len(res.Drafts)))}
	for _, s := range res.Skipped {
		lines = append(lines, "  "+r.muted.Render(fmt.Sprintf("line %d skipped: %s", s.Line, s.Reason)))
	}
	return strings.Join(lines, "\n")
}
