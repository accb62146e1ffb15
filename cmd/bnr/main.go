package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HtoHe/dotfiles/internal/bnr"
	"github.com/HtoHe/dotfiles/internal/bnr/config"
	"github.com/HtoHe/dotfiles/internal/bnr/journal"
	"github.com/HtoHe/dotfiles/internal/bnr/pager"
	"github.com/HtoHe/dotfiles/internal/bnr/rsync"
	"github.com/HtoHe/dotfiles/internal/prompt"
	"github.com/HtoHe/dotfiles/internal/shell"
	"github.com/HtoHe/dotfiles/internal/utils"
	"github.com/HtoHe/dotfiles/internal/version"
	"github.com/spf13/cobra"
)

// debugLog stays open for the life of the process.
var debugLog *os.File

var rootCmd = &cobra.Command{
	Use:   "bnr",
	Short: "Back up, restore or sync your directories with a remote host",
	Long: `bnr copies the configured directory pairs to or from a remote host over
rsync and ssh. Every run is previewed with a dry run and needs confirmation,
and completed runs are appended to a log that is mirrored on the remote host.`,
	Version:           version.Detailed(),
	Args:              cobra.NoArgs,
	PersistentPreRunE: setupLogging,
	RunE:              runBnr,
}

func init() {
	version.AppName = "bnr"

	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().BoolP("preserve", "p", false, "Keep files that exist only on the destination")
	rootCmd.Flags().BoolP("sync", "s", false, "Push then pull every pair, never delete")
	rootCmd.MarkFlagsMutuallyExclusive("preserve", "sync")

	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "bnr config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	rootCmd.PersistentFlags().String("debug-log", config.DefaultDebugLog, "Diagnostics log file, empty to disable")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if debugLog != nil {
		debugLog.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}

	opts := utils.LoggerOpts{Console: os.Stderr, Level: level}
	if path, _ := cmd.Flags().GetString("debug-log"); path != "" && debugLog == nil {
		file, err := utils.OpenLogFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: failed to open debug log: %v\n", yellow.Render("WARN"), err)
		} else {
			debugLog = file
		}
	}
	if debugLog != nil {
		opts.File = debugLog
	}

	utils.SetupLogger(opts)
	slog.Debug("bnr", "version", version.Short(), "command", cmd.CommandPath())
	return nil
}

func runBnr(cmd *cobra.Command, _ []string) error {
	preserve, _ := cmd.Flags().GetBool("preserve")
	sync, _ := cmd.Flags().GetBool("sync")
	opts := bnr.Options{Preserve: preserve, Sync: sync}
	if err := opts.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// past this point errors are not usage errors
	cmd.SilenceUsage = true

	if !shell.LookPath(cfg.RsyncPath) {
		return fmt.Errorf("%s not found in PATH", cfg.RsyncPath)
	}

	filter, err := rsync.LoadFilter(cfg.IgnoreFile)
	if err != nil {
		return err
	}

	executor := &rsync.CommandExecutor{
		Runner:    shell.ExecRunner{},
		Binary:    cfg.RsyncPath,
		Transport: rsync.Transport{Command: cfg.SSHCommand, Port: cfg.Port},
		Filter:    filter,
	}

	params := bnr.Params{
		Config:   cfg,
		Options:  opts,
		Executor: executor,
		Prompter: prompt.NewTerminal(cmd.OutOrStdout()),
		Pager:    pager.New(os.Stdout),
		Out:      cmd.OutOrStdout(),
	}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			slog.Warn("run history disabled", "error", err)
		} else {
			defer j.Close()
			params.Journal = j
		}
	}

	controller, err := bnr.New(params)
	if err != nil {
		return err
	}

	slog.Debug("bnr start", "config", cfg.Path, "pairs", len(cfg.Pairs), "preserve", preserve, "sync", sync)
	return controller.Run(cmd.Context())
}
