package main

import (
	"path/filepath"
	"runtime"

	"github.com/HtoHe/dotfiles/internal/dots"
	"github.com/HtoHe/dotfiles/internal/prompt"
	"github.com/HtoHe/dotfiles/internal/shell"
	"github.com/HtoHe/dotfiles/internal/utils"
	"github.com/spf13/cobra"
)

const (
	packageListName    = "package_list.txt"
	defaultSucklessDir = "~/projects/programs/suckless"
)

func init() {
	rootCmd.AddCommand(newInstallCmd(shell.ExecRunner{}, dots.NewDownloader()))
}

func newInstallCmd(runner shell.Runner, fetcher dots.Fetcher) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [SELECTION]",
		Short: "Install system packages and build tools from source",
		Long: `Install system packages listed in the package list and build Emacs and
GNU Stow from source.

Without SELECTION an interactive menu is shown. SELECTION is a comma separated
list of menu numbers such as "0,3", or "all".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			listPath, _ := cmd.Flags().GetString("packages")
			if listPath == "" {
				listPath = filepath.Join(cfg.Dir, packageListName)
			}
			if listPath, err = utils.ResolvePath(listPath); err != nil {
				return err
			}
			packages, err := dots.LoadPackageList(listPath)
			if err != nil {
				return err
			}

			suckless, _ := cmd.Flags().GetString("suckless-dir")
			workDir, _ := cmd.Flags().GetString("work-dir")
			jobs, _ := cmd.Flags().GetInt("jobs")

			installer := &dots.Installer{
				Packages:    packages,
				Runner:      runner,
				Prompter:    prompt.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout()),
				Fetcher:     fetcher,
				Out:         cmd.OutOrStdout(),
				SucklessDir: suckless,
				WorkDir:     workDir,
				Jobs:        jobs,
			}

			if len(args) == 1 {
				return installer.Run(cmd.Context(), args[0])
			}
			return installer.Menu(cmd.Context())
		},
	}

	cmd.Flags().String("packages", "", "Package list file (default <dir>/"+packageListName+")")
	cmd.Flags().String("suckless-dir", defaultSucklessDir, "Directory holding the dwm, st, dmenu and slock sources")
	cmd.Flags().String("work-dir", "", "Where source tarballs are downloaded and unpacked (default system temp dir)")
	cmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "Parallel make jobs")
	return cmd
}
