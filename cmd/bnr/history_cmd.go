package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/HtoHe/dotfiles/internal/bnr/journal"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous runs, including cancelled and failed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return errors.New("run history is disabled, journal_path is empty")
			}
			cmd.SilenceUsage = true

			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of runs to show, 0 for all")
	cmd.Flags().Bool("json", false, "Print runs as JSON")
	return cmd
}

const historyRow = "%-8s  %-7s  %-16s  %-9s  %-16s  %8s  %5s\n"

func printHistory(w io.Writer, runs []*journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, gray.Render("no runs recorded yet"))
		return
	}

	fmt.Fprintf(w, historyRow, "ID", "MODE", "HOST", "STATUS", "STARTED", "DURATION", "LINES")
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := statusStyle(run.Status).Render(fmt.Sprintf("%-9s", run.Status))
		fmt.Fprintf(w, "%-8s  %-7s  %-16s  %s  %-16s  %8s  %5d\n",
			id, run.Mode, run.Host, status,
			humanize.Time(run.StartedAt),
			run.Duration().Round(time.Second),
			run.Lines,
		)
		if run.FailedTransfer != "" {
			fmt.Fprintf(w, "          %s\n", red.Render("failed at "+run.FailedTransfer))
		}
	}
}

func statusStyle(s journal.Status) lipgloss.Style {
	switch s {
	case journal.StatusCompleted:
		return green
	case journal.StatusFailed:
		return red
	default:
		return gray
	}
}
