package dots

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/HtoHe/dotfiles/internal/shell"
)

// recordingRunner records every command and fails the ones whose string
// form contains a configured substring.
type recordingRunner struct {
	mu    sync.Mutex
	cmds  []shell.Command
	fails map[string]int
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{fails: make(map[string]int)}
}

func (r *recordingRunner) failOn(substr string, code int) {
	r.fails[substr] = code
}

func (r *recordingRunner) Run(_ context.Context, c shell.Command) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)

	for substr, code := range r.fails {
		if strings.Contains(c.String(), substr) {
			if c.Stderr != nil {
				fmt.Fprintf(c.Stderr, "%s: simulated failure\n", c.Name)
			}
			return code, nil
		}
	}
	if c.Stdout != nil {
		io.WriteString(c.Stdout, "ok\n")
	}
	return 0, nil
}

func (r *recordingRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.String()
	}
	return out
}

func (r *recordingRunner) dirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.cmds))
	for i, c := range r.cmds {
		out[i] = c.Dir
	}
	return out
}
