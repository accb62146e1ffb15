package main

import (
	"errors"
	"fmt"

	"github.com/HtoHe/dotfiles/internal/dots"
	"github.com/HtoHe/dotfiles/internal/shell"
	"github.com/spf13/cobra"
)

func init() {
	runner := shell.ExecRunner{}
	rootCmd.AddCommand(
		newListCmd(),
		newStowCmd(runner),
		newUnstowCmd(runner),
		newRestowCmd(runner),
	)
}

func newStowFor(cmd *cobra.Command, runner shell.Runner) (*dots.Stow, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	binary, _ := cmd.Flags().GetString("stow")
	return &dots.Stow{
		Dir:    cfg.Dir,
		Target: cfg.Target,
		Binary: binary,
		Runner: runner,
		Out:    cmd.OutOrStdout(),
	}, nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stow packages of the dotfiles directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStowFor(cmd, nil)
			if err != nil {
				return err
			}
			pkgs, err := s.Packages()
			if err != nil {
				return err
			}
			for _, p := range pkgs {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newStowCmd(runner shell.Runner) *cobra.Command {
	return newStowActionCmd(runner, "stow", "Link packages into the target directory", "linked",
		func(cmd *cobra.Command, s *dots.Stow, pkgs []string) error {
			return s.Deploy(cmd.Context(), pkgs...)
		})
}

func newUnstowCmd(runner shell.Runner) *cobra.Command {
	return newStowActionCmd(runner, "unstow", "Remove the links of packages", "unlinked",
		func(cmd *cobra.Command, s *dots.Stow, pkgs []string) error {
			return s.Remove(cmd.Context(), pkgs...)
		})
}

func newRestowCmd(runner shell.Runner) *cobra.Command {
	return newStowActionCmd(runner, "restow", "Remove then link packages again", "relinked",
		func(cmd *cobra.Command, s *dots.Stow, pkgs []string) error {
			return s.Restow(cmd.Context(), pkgs...)
		})
}

func newStowActionCmd(
	runner shell.Runner,
	use, short, done string,
	apply func(cmd *cobra.Command, s *dots.Stow, pkgs []string) error,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [PATTERN...]",
		Short: short,
		Long: short + `.

Patterns are globs matched against the package directory names, for example
"zsh*" or "{nvim,tmux}". Use --all to select every package.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) > 0) {
				return errors.New("give either package patterns or --all")
			}

			s, err := newStowFor(cmd, runner)
			if err != nil {
				return err
			}

			var pkgs []string
			if all {
				pkgs, err = s.Packages()
			} else {
				pkgs, err = s.Match(args)
			}
			if err != nil {
				return err
			}

			if err := apply(cmd, s, pkgs); err != nil {
				return err
			}
			for _, p := range pkgs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", green.Render("✓"), p, gray.Render(done))
			}
			return nil
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Select every package")
	cmd.Flags().String("stow", "stow", "Path to the stow binary")
	return cmd
}
