package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/spf13/cobra"
)

var tripCmd = &cobra.Command{
	Use:   "trip",
	Short: "Create, change and delete trips",
}

var tripSaveCmd = &cobra.Command{
	Use:   "save <id>",
	Short: "Create or replace a trip",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTripSave),
}

var tripRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a trip; its tasks are kept and unlinked",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTripRm),
}

var tripNoteCmd = &cobra.Command{
	Use:   "note <id> <text>",
	Short: "Add a milestone note, or remove one with --rm",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runTripNote),
}

var tripOutlineCmd = &cobra.Command{
	Use:   "outline <id> [file]",
	Short: "Replace a trip's outline from a file or stdin",
	Long: `Replace a trip's outline. Each line is one block: "# " starts a heading,
"[ ] " or "[x] " a checklist item, anything else is text. Every two leading
spaces indent the block one level.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withApp(runTripOutline),
}

func init() {
	tripCmd.AddCommand(tripSaveCmd)
	tripCmd.AddCommand(tripRmCmd)
	tripCmd.AddCommand(tripNoteCmd)
	tripCmd.AddCommand(tripOutlineCmd)

	tripSaveCmd.Flags().StringP("name", "n", "", "display name")
	tripSaveCmd.Flags().String("start", "", "first day (YYYY-MM-DD)")
	tripSaveCmd.Flags().String("end", "", "last day (YYYY-MM-DD)")
	tripSaveCmd.Flags().String("color", "", "hex color, e.g. #1890ff")
	tripSaveCmd.Flags().Bool("pin", false, "list the trip first")

	tripNoteCmd.Flags().Int("rm", -1, "remove the note at this 1-based position")
	tripOutlineCmd.Flags().Bool("show", false, "print the current outline instead of replacing it")
}

func runTripSave(cmd *cobra.Command, args []string, a *app) error {
	trip, _ := a.planner.Trip(args[0])
	trip.ID = args[0]
	flags := cmd.Flags()
	if flags.Changed("name") {
		trip.Name, _ = flags.GetString("name")
	}
	for _, f := range []struct {
		name string
		dst  *model.Date
	}{{"start", &trip.Start}, {"end", &trip.End}} {
		if !flags.Changed(f.name) {
			continue
		}
		raw, _ := flags.GetString(f.name)
		d, err := model.ParseDate(raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.dst = d
	}
	if flags.Changed("color") {
		trip.Color, _ = flags.GetString("color")
	}
	if flags.Changed("pin") {
		trip.Pinned, _ = flags.GetBool("pin")
	}

	saved, err := a.planner.SaveTrip(cmd.Context(), trip)
	if err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("saved trip %s (%s..%s)", saved.ID, saved.Start, saved.End))
	return nil
}

func runTripRm(cmd *cobra.Command, args []string, a *app) error {
	if err := a.planner.DeleteTrip(cmd.Context(), args[0]); err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("deleted trip %s", args[0]))
	return nil
}

func runTripNote(cmd *cobra.Command, args []string, a *app) error {
	if n, _ := cmd.Flags().GetInt("rm"); n >= 0 {
		return a.planner.RemoveMilestoneNote(args[0], n-1)
	}
	if len(args) < 2 {
		return fmt.Errorf("missing note text")
	}
	return a.planner.AddMilestoneNote(args[0], strings.Join(args[1:], " "))
}

func runTripOutline(cmd *cobra.Command, args []string, a *app) error {
	if show, _ := cmd.Flags().GetBool("show"); show {
		trip, ok := a.planner.Trip(args[0])
		if !ok {
			return fmt.Errorf("trip %s not found", args[0])
		}
		fmt.Fprint(cmd.OutOrStdout(), formatOutline(trip.Outline))
		return nil
	}
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	outline, err := parseOutline(r)
	if err != nil {
		return err
	}
	if err := a.planner.EditOutline(args[0], outline); err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("outline of %s has %d blocks", args[0], len(outline)))
	return nil
}

func parseOutline(r io.Reader) ([]model.Block, error) {
	var blocks []model.Block
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		text := strings.TrimLeft(line, " ")
		if text == "" {
			continue
		}
		b := model.Block{Kind: model.BlockText, Indent: (len(line) - len(text)) / 2, Text: text}
		switch {
		case strings.HasPrefix(text, "# "):
			b.Kind, b.Text = model.BlockHeading, strings.TrimSpace(text[2:])
		case strings.HasPrefix(text, "[ ] "):
			b.Kind, b.Text = model.BlockCheck, strings.TrimSpace(text[4:])
		case strings.HasPrefix(text, "[x] "), strings.HasPrefix(text, "[X] "):
			b.Kind, b.Text, b.Checked = model.BlockCheck, strings.TrimSpace(text[4:]), true
		}
		blocks = append(blocks, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	return blocks, nil
}

// formatOutline is the inverse of parseOutline.
func formatOutline(blocks []model.Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(strings.Repeat("  ", b.Indent))
		switch b.Kind {
		case model.BlockHeading:
			sb.WriteString("# ")
		case model.BlockCheck:
			if b.Checked {
				sb.WriteString("[x] ")
			} else {
				sb.WriteString("[ ] ")
			}
		}
		sb.WriteString(b.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
