// Package cli is the tripcal command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "tripcal",
		Short: "Plan trips, deadlines and to-dos on a calendar",
		Long: `tripcal keeps to-do tasks and multi-day trips per owner, shows them by day,
on a rolling 60 day list, on a category board and as per-trip progress timelines.

Storage is a local file by default; sqlite, postgres and Cloud Datastore are
selected in the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/tripcal/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(agendaCmd)
	rootCmd.AddCommand(horizonCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(tripsCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(memosCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(tripCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(themeCmd)
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
