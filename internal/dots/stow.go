// Package dots deploys the dotfile packages with GNU Stow and installs the
// system packages and source builds they depend on.
package dots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/HtoHe/dotfiles/internal/shell"
	"github.com/bmatcuk/doublestar/v4"
)

var ErrNoPackages = errors.New("no packages selected")

type stowAction string

const (
	actionStow   stowAction = ""
	actionDelete stowAction = "-D"
	actionRestow stowAction = "-R"
)

// Stow drives GNU Stow over the package directories in Dir.
type Stow struct {
	Dir    string
	Target string
	Binary string
	Runner shell.Runner
	Out    io.Writer
}

// Packages lists the package directories, hidden ones excluded.
func (s *Stow) Packages() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dotfiles directory: %w", err)
	}

	var pkgs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		pkgs = append(pkgs, e.Name())
	}
	return pkgs, nil
}

// Match returns the packages matching any of patterns, in directory order.
// A pattern that matches nothing is an error.
func (s *Stow) Match(patterns []string) ([]string, error) {
	pkgs, err := s.Packages()
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		found := false
		for _, pkg := range pkgs {
			if ok, _ := doublestar.Match(pattern, pkg); ok {
				found = true
				if !slices.Contains(selected, pkg) {
					selected = append(selected, pkg)
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("no package matches %q", pattern)
		}
	}

	slices.SortStableFunc(selected, func(a, b string) int {
		return slices.Index(pkgs, a) - slices.Index(pkgs, b)
	})
	return selected, nil
}

func (s *Stow) Deploy(ctx context.Context, pkgs ...string) error {
	return s.run(ctx, actionStow, pkgs)
}

func (s *Stow) Remove(ctx context.Context, pkgs ...string) error {
	return s.run(ctx, actionDelete, pkgs)
}

func (s *Stow) Restow(ctx context.Context, pkgs ...string) error {
	return s.run(ctx, actionRestow, pkgs)
}

func (s *Stow) args(action stowAction, pkgs []string) []string {
	args := []string{"-d", s.Dir, "-t", s.Target}
	if action != actionStow {
		args = append(args, string(action))
	}
	args = append(args, "-v")
	return append(args, pkgs...)
}

func (s *Stow) run(ctx context.Context, action stowAction, pkgs []string) error {
	if len(pkgs) == 0 {
		return ErrNoPackages
	}

	binary := s.Binary
	if binary == "" {
		binary = "stow"
	}
	out := s.Out
	if out == nil {
		out = io.Discard
	}

	return shell.Check(ctx, s.Runner, shell.Command{
		Name:   binary,
		Args:   s.args(action, pkgs),
		Stdout: out,
		Stderr: out,
	})
}
