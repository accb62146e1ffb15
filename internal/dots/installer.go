package dots

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/HtoHe/dotfiles/internal/shell"
	"github.com/HtoHe/dotfiles/internal/utils"
	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
)

const (
	DefaultEmacsVersion = "30.1"
	emacsURL            = "https://ftp.gnu.org/gnu/emacs/emacs-%s.tar.gz"
	stowURL             = "https://ftp.gnu.org/gnu/stow/stow-latest.tar.gz"
	menuRule            = "=================================================="
)

// SucklessPrograms must all be present before any of them is compiled.
var SucklessPrograms = []string{"dwm", "st", "dmenu", "slock"}

var emacsConfigureFlags = []string{
	"--with-x-toolkit=gtk3",
	"--with-native-compilation",
	"--with-json",
	"--with-tree-sitter",
	"--with-cairo",
	"--with-modules",
}

// Prompter reads one line of operator input.
type Prompter interface {
	Line(ctx context.Context, prompt string) (string, error)
}

// Fetcher downloads a URL to a file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Installer runs the numbered setup steps of a fresh machine.
type Installer struct {
	Packages    PackageList
	Runner      shell.Runner
	Prompter    Prompter
	Fetcher     Fetcher
	Out         io.Writer
	SucklessDir string
	WorkDir     string
	Jobs        int
}

// Option is one entry of the installer menu.
type Option struct {
	Key   string
	Title string
	run   func(ctx context.Context) error
}

// OptionError reports the menu option that stopped a batch.
type OptionError struct {
	Key string
	Err error
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %s failed: %v", e.Key, e.Err)
}

func (e *OptionError) Unwrap() error {
	return e.Err
}

func (in *Installer) Options() []Option {
	return []Option{
		{Key: "0", Title: "Install basic development packages", run: in.installBasic},
		{Key: "1", Title: "Install DWM dependencies and compile suckless programs", run: in.installDWM},
		{Key: "2", Title: "Install Emacs from source", run: in.installEmacs},
		{Key: "3", Title: "Install GNU Stow from source", run: in.installStow},
		{Key: "4", Title: "Install basic utilities", run: in.installUtils},
	}
}

// ParseSelection turns "0,3" or "all" into option keys, first occurrence
// order, duplicates dropped.
func ParseSelection(choice string, options []Option) []string {
	choice = strings.TrimSpace(choice)
	var keys []string
	if strings.EqualFold(choice, "all") {
		for _, o := range options {
			keys = append(keys, o.Key)
		}
		return keys
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	for _, part := range strings.Split(choice, ",") {
		key := strings.TrimSpace(part)
		if seen.Add(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Run executes the selected options in order. Unknown keys are reported and
// skipped; the first failing option stops the batch.
func (in *Installer) Run(ctx context.Context, choice string) error {
	options := in.Options()
	byKey := make(map[string]Option, len(options))
	for _, o := range options {
		byKey[o.Key] = o
	}

	for _, key := range ParseSelection(choice, options) {
		opt, ok := byKey[key]
		if !ok {
			in.printf("Invalid option: %s\n", key)
			continue
		}

		in.printf("\n--- Executing option %s ---\n", key)
		if err := opt.run(ctx); err != nil {
			in.printf("✗ Option %s failed: %v\n", key, err)
			return &OptionError{Key: key, Err: err}
		}
		in.printf("✓ Option %s completed successfully\n", key)
	}
	return nil
}

// Menu shows the options until the operator declines to continue.
func (in *Installer) Menu(ctx context.Context) error {
	for {
		in.printf("\n%s\nDEBIAN PACKAGE INSTALLER\n%s\n", menuRule, menuRule)
		for _, o := range in.Options() {
			in.printf("[%s] %s\n", o.Key, o.Title)
		}
		in.printf("%s\n", menuRule)

		choice, err := in.Prompter.Line(ctx, "Enter your choice (e.g., 0,3 or 'all'): ")
		if err != nil {
			return err
		}

		if err := in.Run(ctx, choice); err != nil {
			var optErr *OptionError
			if !errors.As(err, &optErr) || ctx.Err() != nil {
				return err
			}
			slog.Debug("installer option failed", "option", optErr.Key, "error", optErr.Err)
		}

		again, err := in.Prompter.Line(ctx, "\nDo you want to continue? (y/n): ")
		if err != nil {
			return err
		}
		if strings.ToLower(strings.TrimSpace(again)) != "y" {
			return nil
		}
	}
}

func (in *Installer) printf(format string, args ...any) {
	if in.Out != nil {
		fmt.Fprintf(in.Out, format, args...)
	}
}

// step runs one command, keeping its output for the error message.
func (in *Installer) step(ctx context.Context, dir, name string, args ...string) error {
	var output bytes.Buffer
	err := shell.Check(ctx, in.Runner, shell.Command{
		Name:   name,
		Args:   args,
		Dir:    dir,
		Stdout: &output,
		Stderr: &output,
	})
	if err != nil {
		if tail := lastLines(output.String(), 5); tail != "" {
			return fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	return nil
}

func (in *Installer) announce(doing, done string, fn func() error) error {
	in.printf("%s...\n", doing)
	if err := fn(); err != nil {
		return err
	}
	in.printf("✓ %s\n", done)
	return nil
}

func (in *Installer) aptInstall(ctx context.Context, section, label string) error {
	pkgs, err := in.Packages.Section(section)
	if err != nil {
		return err
	}
	return in.announce("Installing "+label+" packages", label+" packages installed successfully", func() error {
		if err := in.step(ctx, "", "sudo", append([]string{"apt", "install", "-y"}, pkgs...)...); err != nil {
			return fmt.Errorf("failed to install %s packages: %w", label, err)
		}
		return nil
	})
}

func (in *Installer) installBasic(ctx context.Context) error {
	return in.aptInstall(ctx, "dev", "basic development")
}

func (in *Installer) installUtils(ctx context.Context) error {
	return in.aptInstall(ctx, "utils", "utilities")
}

func (in *Installer) installDWM(ctx context.Context) error {
	if err := in.aptInstall(ctx, "dwm", "DWM dependencies"); err != nil {
		return err
	}

	dir, err := utils.ResolvePath(in.SucklessDir)
	if err != nil {
		return err
	}
	if !utils.DirExists(dir) {
		return fmt.Errorf("suckless directory not found: %s", dir)
	}

	var found []string
	fsys := os.DirFS(dir)
	for _, program := range SucklessPrograms {
		matches, err := doublestar.Glob(fsys, program+"*")
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("required program '%s' not found in %s", program, dir)
		}
		found = append(found, matches...)
	}

	for _, name := range found {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			continue
		}
		err := in.announce("Compiling "+name, name+" compiled successfully", func() error {
			if err := in.step(ctx, path, "make"); err != nil {
				return fmt.Errorf("failed to compile %s: %w", name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (in *Installer) installEmacs(ctx context.Context) error {
	version, err := in.Prompter.Line(ctx, fmt.Sprintf("Enter Emacs version (default: %s): ", DefaultEmacsVersion))
	if err != nil {
		return err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = DefaultEmacsVersion
	}

	src, err := in.fetchSource(ctx, "Emacs "+version, fmt.Sprintf(emacsURL, version), "emacs-"+version+".tar.gz")
	if err != nil {
		return err
	}

	if err := in.aptInstall(ctx, "emacs", "Emacs dependencies"); err != nil {
		return err
	}

	return in.build(ctx, "Emacs", src,
		buildStep{"Configuring", "configured", "./configure", emacsConfigureFlags, false},
		buildStep{"Compiling", "compiled", "make", []string{"-j" + strconv.Itoa(in.jobs())}, false},
		buildStep{"Running tests for", "tests passed", "make", []string{"check"}, false},
		buildStep{"Installing", "installed", "make", []string{"install"}, true},
	)
}

func (in *Installer) installStow(ctx context.Context) error {
	src, err := in.fetchSource(ctx, "GNU Stow", stowURL, "stow-latest.tar.gz")
	if err != nil {
		return err
	}
	in.printf("Found extracted directory: %s\n", src)

	return in.build(ctx, "GNU Stow", src,
		buildStep{"Configuring", "configured", "./configure", nil, false},
		buildStep{"Compiling", "compiled", "make", nil, false},
		buildStep{"Installing", "installed", "make", []string{"install"}, true},
	)
}

// fetchSource downloads and unpacks a tarball into the work directory and
// returns the source directory.
func (in *Installer) fetchSource(ctx context.Context, name, url, file string) (string, error) {
	workDir := in.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	archive := filepath.Join(workDir, file)

	err := in.announce("Downloading "+name, name+" downloaded successfully", func() error {
		if err := in.Fetcher.Fetch(ctx, url, archive); err != nil {
			return fmt.Errorf("failed to download %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	var src string
	err = in.announce("Extracting "+name, name+" extracted successfully", func() error {
		src, err = ExtractTarGz(archive, workDir)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", name, err)
		}
		return nil
	})
	return src, err
}

type buildStep struct {
	doing string
	done  string
	name  string
	args  []string
	sudo  bool
}

func (in *Installer) build(ctx context.Context, what, dir string, steps ...buildStep) error {
	if !utils.DirExists(dir) {
		return fmt.Errorf("source directory not found: %s", dir)
	}

	for _, s := range steps {
		name, args := s.name, s.args
		if s.sudo {
			name, args = "sudo", append([]string{s.name}, s.args...)
		}
		err := in.announce(s.doing+" "+what, what+" "+s.done+" successfully", func() error {
			if err := in.step(ctx, dir, name, args...); err != nil {
				return fmt.Errorf("%s %s: %w", strings.ToLower(s.doing), what, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (in *Installer) jobs() int {
	if in.Jobs > 0 {
		return in.Jobs
	}
	return runtime.NumCPU()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
