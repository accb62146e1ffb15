package rsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/HtoHe/dotfiles/internal/shell"
)

// ExitPartial is rsync's "partial transfer due to error", which is also what
// a missing source file produces.
const ExitPartial = 23

// Result is what a finished transfer reports.
type Result struct {
	Lines    []string
	ExitCode int
}

func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// SourceMissing reports whether the transfer failed only because the source
// path does not exist. Other errors reported with the same exit status, such
// as permission denied, make it false.
func (r *Result) SourceMissing() bool {
	if r.ExitCode != ExitPartial {
		return false
	}
	missing := false
	for _, line := range r.Lines {
		if !strings.HasPrefix(line, "rsync:") {
			continue
		}
		if !strings.Contains(line, "No such file or directory") {
			return false
		}
		missing = true
	}
	return missing
}

// Executor runs one transfer, streaming the tool's combined output to out.
// A tool failure is a non-zero ExitCode; err means the tool could not be run.
type Executor interface {
	Run(ctx context.Context, t Transfer, out io.Writer) (*Result, error)
}

// CommandExecutor shells out to the rsync binary.
type CommandExecutor struct {
	Runner    shell.Runner
	Binary    string
	Transport Transport
	Filter    *Filter
}

func (e *CommandExecutor) Run(ctx context.Context, t Transfer, out io.Writer) (*Result, error) {
	lines := &lineCollector{}
	w := io.MultiWriter(out, lines)

	code, err := e.Runner.Run(ctx, shell.Command{
		Name:   e.Binary,
		Args:   Args(t, e.Transport, e.Filter),
		Stdout: w,
		Stderr: w,
	})
	if err != nil {
		return nil, fmt.Errorf("rsync %s: %w", t, err)
	}

	return &Result{Lines: lines.Lines(), ExitCode: code}, nil
}

// lineCollector splits written bytes into lines. rsync --progress rewrites a
// line with carriage returns; only the final state of such a line is kept.
type lineCollector struct {
	mu      sync.Mutex
	partial bytes.Buffer
	lines   []string
}

func (c *lineCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.partial.Write(p)
	for {
		idx := bytes.IndexByte(c.partial.Bytes(), '\n')
		if idx < 0 {
			return len(p), nil
		}
		c.add(string(c.partial.Next(idx + 1)))
	}
}

func (c *lineCollector) add(raw string) {
	line := strings.TrimRight(raw, "\r\n")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	if line != "" {
		c.lines = append(c.lines, line)
	}
}

func (c *lineCollector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.partial.Len() > 0 {
		c.add(c.partial.String())
		c.partial.Reset()
	}
	return c.lines
}
