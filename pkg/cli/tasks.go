package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  withApp(runAdd),
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a task's content, category, deadline or trip",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEdit),
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a task between open and done",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runToggle),
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runRm),
}

func init() {
	for _, cmd := range []*cobra.Command{addCmd, editCmd} {
		cmd.Flags().StringP("date", "d", "", "deadline (YYYY-MM-DD)")
		cmd.Flags().StringP("category", "c", "", "immediate, important, reminder, memo or imported")
		cmd.Flags().StringP("trip", "t", "", "link the task to this trip")
		cmd.Flags().String("note", "", "note stored with the trip link")
	}
	editCmd.Flags().String("content", "", "new content")
	editCmd.Flags().Bool("no-date", false, "remove the deadline")
	editCmd.Flags().Bool("unlink", false, "remove the trip link")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

// applyTaskFlags copies the flags that were set onto t.
func applyTaskFlags(cmd *cobra.Command, t *model.Task) error {
	flags := cmd.Flags()
	if flags.Changed("date") {
		raw, _ := flags.GetString("date")
		d, err := dateFlag(raw)
		if err != nil {
			return err
		}
		t.Deadline = d
	}
	if flags.Changed("category") {
		raw, _ := flags.GetString("category")
		c, err := model.ParseCategory(raw)
		if err != nil {
			return err
		}
		t.Category = c
	}
	if flags.Changed("trip") {
		trip, _ := flags.GetString("trip")
		t.Link = &model.LinkedInfo{GroupID: trip}
	}
	if flags.Changed("note") {
		note, _ := flags.GetString("note")
		if t.Link == nil {
			return fmt.Errorf("--note needs a trip link")
		}
		t.Link.Note = note
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string, a *app) error {
	draft := model.Task{Content: strings.Join(args, " ")}
	if err := applyTaskFlags(cmd, &draft); err != nil {
		return err
	}
	if draft.Link != nil {
		if _, ok := a.planner.Trip(draft.Link.GroupID); !ok {
			a.logger.Warnf("trip %s does not exist; the task is linked anyway", draft.Link.GroupID)
		}
	}
	task, err := a.planner.CreateTask(cmd.Context(), draft)
	if err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("created task %d", task.ID))
	return nil
}

func runEdit(cmd *cobra.Command, args []string, a *app) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	task, ok := a.planner.Task(id)
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}
	if cmd.Flags().Changed("content") {
		task.Content, _ = cmd.Flags().GetString("content")
	}
	if noDate, _ := cmd.Flags().GetBool("no-date"); noDate {
		task.Deadline = nil
	}
	if unlink, _ := cmd.Flags().GetBool("unlink"); unlink {
		task.Link = nil
	}
	if err := applyTaskFlags(cmd, &task); err != nil {
		return err
	}
	if _, err := a.planner.UpdateTask(cmd.Context(), task); err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("updated task %d", id))
	return nil
}

func runToggle(cmd *cobra.Command, args []string, a *app) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	task, err := a.planner.ToggleDone(cmd.Context(), id)
	if err != nil {
		return err
	}
	state := "open"
	if task.Done {
		state = "done"
	}
	printLine(cmd, fmt.Sprintf("task %d is %s", id, state))
	return nil
}

func runRm(cmd *cobra.Command, args []string, a *app) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.planner.DeleteTask(cmd.Context(), id); err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("deleted task %d", id))
	return nil
}
