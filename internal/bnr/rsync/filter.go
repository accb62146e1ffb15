package rsync

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/HtoHe/dotfiles/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultExcludes never leave the machine. Patterns without a slash match at
// any depth.
var DefaultExcludes = []string{
	// editor autosave, lock and backup files
	".#*",
	"#*#",
	"*~",
	"*.swp",
	// version control
	".git/",
	".hg/",
	".svn/",
	// bytecode caches
	"__pycache__/",
	"*.py[cod]",
	// virtual environments
	"venv/",
	".venv/",
}

// Filter is the exclusion set applied to every directory transfer.
type Filter struct {
	patterns []string
	ignore   *gitignore.GitIgnore
}

func NewFilter(extra ...string) *Filter {
	f := &Filter{}
	f.patterns = append(f.patterns, DefaultExcludes...)
	f.patterns = append(f.patterns, extra...)

	lines := make([]string, len(f.patterns))
	for i, p := range f.patterns {
		lines[i] = gitignoreLine(p)
	}
	f.ignore = gitignore.CompileIgnoreLines(lines...)
	return f
}

// gitignoreLine translates an rsync pattern for the gitignore matcher, which
// anchors any pattern containing a slash to the root and reads a leading `#`
// or `!` as syntax.
func gitignoreLine(pattern string) string {
	if strings.HasPrefix(pattern, "#") || strings.HasPrefix(pattern, "!") {
		pattern = `\` + pattern
	}
	trimmed := strings.TrimSuffix(pattern, "/")
	if strings.HasSuffix(pattern, "/") && !strings.Contains(trimmed, "/") {
		return "**/" + pattern
	}
	return pattern
}

// LoadFilter builds the default filter plus the patterns of ignoreFile, one
// per line, `#` starting a comment. A missing file is not an error.
func LoadFilter(ignoreFile string) (*Filter, error) {
	if ignoreFile == "" || !utils.FileExists(ignoreFile) {
		return NewFilter(), nil
	}

	file, err := os.Open(ignoreFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open ignore file %s: %w", ignoreFile, err)
	}
	defer file.Close()

	var extra []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		extra = append(extra, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ignore file %s: %w", ignoreFile, err)
	}

	slog.Debug("loaded ignore file", "path", ignoreFile, "rules", len(extra))
	return NewFilter(extra...), nil
}

func (f *Filter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// Args renders the filter as rsync arguments.
func (f *Filter) Args() []string {
	args := make([]string, 0, len(f.patterns))
	for _, p := range f.patterns {
		args = append(args, "--exclude="+p)
	}
	return args
}

// ShouldIgnore reports whether a slash-separated path relative to a transfer
// root is excluded.
func (f *Filter) ShouldIgnore(rel string) bool {
	return f.ignore.MatchesPath(filepath.ToSlash(rel))
}
