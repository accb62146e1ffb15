package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/HtoHe/dotfiles/internal/bnr/runlog"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLogCmd())
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the latest sections of the local run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("sections")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			entries, err := runlog.ReadSections(cfg.LogPath)
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", gray.Render("no run log at "+cfg.LogPath))
				return nil
			}
			if err != nil {
				return err
			}

			if n > 0 && len(entries) > n {
				entries = entries[len(entries)-n:]
			}
			printSections(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntP("sections", "n", 1, "Number of sections to show, 0 for all")
	return cmd
}

func printSections(w io.Writer, entries []runlog.Entry) {
	for _, e := range entries {
		header := e.Mode
		if !e.Time.IsZero() {
			header = runlog.Header(e.Mode, e.Time)
		}
		fmt.Fprintln(w, cyan.Render(header))
		for _, line := range e.Lines {
			fmt.Fprintln(w, line)
		}
		fmt.Fprintln(w, gray.Render(runlog.Delimiter))
	}
}
