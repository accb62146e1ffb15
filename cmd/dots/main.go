package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/HtoHe/dotfiles/internal/utils"
	"github.com/HtoHe/dotfiles/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "DOTS"
	defaultDir    = "~/dotfiles"
	defaultTarget = "~"
)

var rootCmd = &cobra.Command{
	Use:   "dots",
	Short: "Deploy dotfiles with GNU Stow and set up a fresh machine",
	Long: `dots links the packages of a dotfiles repository into the home directory
with GNU Stow, and installs the system packages and source builds they need.`,
	Version:           version.Detailed(),
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	version.AppName = "dots"

	rootCmd.PersistentFlags().StringP("dir", "d", defaultDir, "Dotfiles repository holding the stow packages")
	rootCmd.PersistentFlags().StringP("target", "t", defaultTarget, "Directory the packages are linked into")
	rootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	utils.SetupLogger(utils.LoggerOpts{Console: os.Stderr, Level: level})
	slog.Debug("dots", "version", version.Short(), "command", cmd.CommandPath())
	return nil
}

// settings are the resolved locations shared by every subcommand.
type settings struct {
	Dir    string
	Target string
}

// loadSettings binds --dir and --target to DOTS_DIR and DOTS_TARGET. An
// explicit flag wins over the environment.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"dir", "target"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	dir, err := utils.ResolvePath(v.GetString("dir"))
	if err != nil {
		return nil, err
	}
	target, err := utils.ResolvePath(v.GetString("target"))
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(dir) {
		return nil, fmt.Errorf("dotfiles directory not found: %s", dir)
	}
	return &settings{Dir: dir, Target: target}, nil
}
