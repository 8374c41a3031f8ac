package cli

import (
	"strings"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/spf13/cobra"
)

var agendaCmd = &cobra.Command{
	Use:   "agenda [date]",
	Short: "Show the tasks, trips and holiday of one day (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runAgenda),
}

var horizonCmd = &cobra.Command{
	Use:   "horizon",
	Short: "List the next 60 days that have something on them",
	Args:  cobra.NoArgs,
	RunE:  withApp(runHorizon),
}

var boardCmd = &cobra.Command{
	Use:   "board [category]",
	Short: "Show tasks by category",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runBoard),
}

var tripsCmd = &cobra.Command{
	Use:   "trips",
	Short: "List trips with their completion",
	Args:  cobra.NoArgs,
	RunE:  withApp(runTrips),
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <trip>",
	Short: "Show a trip's dated tasks as a progress timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runTimeline),
}

var memosCmd = &cobra.Command{
	Use:   "memos <trip>",
	Short: "Show a trip's undated tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runMemos),
}

func init() {
	timelineCmd.Flags().StringP("mode", "m", string(order.ModePriority), "ordering: priority or date")
	horizonCmd.Flags().String("today", "", "start day instead of today (YYYY-MM-DD)")
	timelineCmd.Flags().String("today", "", "evaluate overdue steps against this day (YYYY-MM-DD)")
}

// today reads the --today flag when the command has one.
func today(cmd *cobra.Command, a *app) (model.Date, error) {
	raw, _ := cmd.Flags().GetString("today")
	if raw == "" {
		return a.planner.Today(), nil
	}
	return model.ParseDate(raw)
}

func runAgenda(cmd *cobra.Command, args []string, a *app) error {
	d := a.planner.Today()
	if len(args) == 1 {
		var err error
		if d, err = model.ParseDate(args[0]); err != nil {
			return err
		}
	}
	printLine(cmd, a.out.Day(a.planner.Day(d)))
	return nil
}

func runHorizon(cmd *cobra.Command, _ []string, a *app) error {
	d, err := today(cmd, a)
	if err != nil {
		return err
	}
	printLine(cmd, a.out.Horizon(a.planner.Horizon(d)))
	return nil
}

func runBoard(cmd *cobra.Command, args []string, a *app) error {
	categories := model.Categories
	if len(args) == 1 {
		c, err := model.ParseCategory(args[0])
		if err != nil {
			return err
		}
		categories = []model.Category{c}
	}
	columns := make([]string, 0, len(categories))
	for _, c := range categories {
		columns = append(columns, a.out.Board(c, a.planner.Board(c)))
	}
	printLine(cmd, strings.Join(columns, "\n\n"))
	return nil
}

func runTrips(cmd *cobra.Command, _ []string, a *app) error {
	printLine(cmd, a.out.Trips(a.planner.Trips(), a.planner.Progress))
	return nil
}

func runTimeline(cmd *cobra.Command, args []string, a *app) error {
	raw, _ := cmd.Flags().GetString("mode")
	mode, err := order.ParseMode(raw)
	if err != nil {
		return err
	}
	d, err := today(cmd, a)
	if err != nil {
		return err
	}
	steps, err := a.planner.Timeline(args[0], mode, d)
	if err != nil {
		return err
	}
	trip, _ := a.planner.Trip(args[0])
	printLine(cmd, a.out.Timeline(trip, steps))
	return nil
}

func runMemos(cmd *cobra.Command, args []string, a *app) error {
	memos, err := a.planner.Memos(args[0])
	if err != nil {
		return err
	}
	trip, _ := a.planner.Trip(args[0])
	printLine(cmd, a.out.Memos(trip, memos))
	return nil
}
