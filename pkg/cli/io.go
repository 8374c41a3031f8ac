package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/harrisonrobin/tripcal/pkg/export"
	"github.com/harrisonrobin/tripcal/pkg/order"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Create tasks from dated lines of text (stdin when no file is given)",
	Long: `Each line holding a date becomes one task. Dates may be written as
2025-12-10, 2025/12/10, 2025.12.10 or 20251210; leading numbering and
trailing punctuation are stripped. Lines without a valid date are skipped
and reported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runImport),
}

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Write the board and every trip timeline to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runExport),
}

func init() {
	importCmd.Flags().StringP("trip", "t", "", "link the imported tasks to this trip")
	exportCmd.Flags().StringP("mode", "m", string(order.ModePriority), "timeline ordering: priority or date")
}

func runImport(cmd *cobra.Command, args []string, a *app) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	tripID, _ := cmd.Flags().GetString("trip")
	res, err := a.planner.Import(cmd.Context(), string(text), tripID)
	if res != nil {
		printLine(cmd, a.out.Imported(res))
	}
	return err
}

func runExport(cmd *cobra.Command, args []string, a *app) error {
	raw, _ := cmd.Flags().GetString("mode")
	mode, err := order.ParseMode(raw)
	if err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := export.Write(f, a.planner.Tasks(), a.planner.Trips(), mode, a.planner.Today()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printLine(cmd, fmt.Sprintf("wrote %s", args[0]))
	return nil
}
