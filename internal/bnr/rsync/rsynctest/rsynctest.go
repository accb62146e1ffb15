// Package rsynctest provides an in-process stand-in for rsync. Hosts map to
// local directories that play the remote home, so transfers can be asserted
// on real files without rsync or ssh.
package rsynctest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/HtoHe/dotfiles/internal/bnr/rsync"
)

// Executor mirrors files between a pair's local directory and the directory
// registered for the transfer's host.
type Executor struct {
	Filter *rsync.Filter

	mu    sync.Mutex
	hosts map[string]string
	fail  map[string]failure
	calls []rsync.Transfer
}

var _ rsync.Executor = (*Executor)(nil)

func New() *Executor {
	return &Executor{
		Filter: rsync.NewFilter(),
		hosts:  make(map[string]string),
		fail:   make(map[string]failure),
	}
}

// AddHost makes host reachable, with root acting as its home directory.
func (e *Executor) AddHost(host, root string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hosts[host] = root
}

type failure struct {
	code int
	line string
}

// FailOn makes every non-dry-run transfer of pair in direction d exit with
// code. Log file transfers are matched by their pair name too.
func (e *Executor) FailOn(d rsync.Direction, pair string, code int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[key(d, pair)] = failure{
		code: code,
		line: fmt.Sprintf("rsync error: simulated failure for %s (code %d)", pair, code),
	}
}

// DenyOn makes the source of pair in direction d unreadable, which rsync
// reports with ExitPartial like a missing file.
func (e *Executor) DenyOn(d rsync.Direction, pair string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[key(d, pair)] = failure{
		code: rsync.ExitPartial,
		line: fmt.Sprintf("rsync: [sender] send_files failed to open %q: Permission denied (13)", pair),
	}
}

// Calls returns the transfers run so far, in order.
func (e *Executor) Calls() []rsync.Transfer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// Reset forgets recorded calls.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}

func key(d rsync.Direction, pair string) string {
	return d.String() + " " + pair
}

func (e *Executor) Run(ctx context.Context, t rsync.Transfer, out io.Writer) (*rsync.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.calls = append(e.calls, t)
	root, reachable := e.hosts[t.Host]
	fail, failing := e.fail[key(t.Direction, t.Pair.Name)]
	e.mu.Unlock()

	r := &run{t: t, out: out, filter: e.Filter}

	if !reachable {
		r.printf("ssh: Could not resolve hostname %s: Name or service not known", t.Host)
		r.printf("rsync: connection unexpectedly closed (0 bytes received so far) [sender]")
		return r.result(255), nil
	}
	if failing && !t.DryRun {
		r.printf("%s", fail.line)
		if fail.code == rsync.ExitPartial {
			r.printf("rsync error: some files/attrs were not transferred (see previous errors) (code %d)", rsync.ExitPartial)
		}
		return r.result(fail.code), nil
	}

	local := t.Pair.Local
	remote := filepath.Join(root, t.Pair.Remote)
	src, dst := local, remote
	if t.Direction == rsync.Pull {
		src, dst = remote, local
	}

	if t.File {
		return r.file(src, dst)
	}
	return r.tree(src, dst)
}

// run carries the state of one simulated invocation.
type run struct {
	t      rsync.Transfer
	out    io.Writer
	filter *rsync.Filter
	lines  []string
}

func (r *run) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.lines = append(r.lines, line)
	_, _ = io.WriteString(r.out, line+"\n")
}

func (r *run) result(code int) *rsync.Result {
	return &rsync.Result{Lines: r.lines, ExitCode: code}
}

func (r *run) has(flag string) bool {
	return slices.Contains(r.t.Flags, flag)
}

func (r *run) header() {
	if r.t.Direction == rsync.Pull {
		r.printf("receiving incremental file list")
	} else {
		r.printf("sending incremental file list")
	}
}

func (r *run) trailer(sent int64) {
	r.printf("")
	r.printf("sent %d bytes  received 0 bytes", sent)
	if r.t.DryRun {
		r.printf("total size is %d  speedup is 1.00 (DRY RUN)", sent)
	}
}

func (r *run) missing(src string) *rsync.Result {
	r.printf("rsync: [sender] change_dir %q failed: No such file or directory (2)", src)
	r.printf("rsync error: some files/attrs were not transferred (see previous errors) (code %d)", rsync.ExitPartial)
	return r.result(rsync.ExitPartial)
}

func (r *run) file(src, dst string) (*rsync.Result, error) {
	info, err := os.Lstat(src)
	if err != nil {
		r.printf("rsync: [sender] link_stat %q failed: No such file or directory (2)", src)
		r.printf("rsync error: some files/attrs were not transferred (see previous errors) (code %d)", rsync.ExitPartial)
		return r.result(rsync.ExitPartial), nil
	}

	var sent int64
	if r.wants(info, dst) {
		r.printf("%s", filepath.Base(src))
		sent = info.Size()
		if !r.t.DryRun {
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return nil, err
			}
			if err := copyEntry(src, dst, info); err != nil {
				return nil, err
			}
		}
	}
	r.trailer(sent)
	return r.result(0), nil
}

func (r *run) tree(src, dst string) (*rsync.Result, error) {
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return r.missing(src), nil
	}

	r.header()
	if !r.t.DryRun {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return nil, err
		}
	}

	kept := make(map[string]struct{})
	var sent int64
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)

		if r.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		kept[rel] = struct{}{}

		target := filepath.Join(dst, filepath.FromSlash(rel))
		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			if _, err := os.Stat(target); os.IsNotExist(err) {
				r.printf("%s/", rel)
				if !r.t.DryRun {
					return os.MkdirAll(target, info.Mode().Perm())
				}
			}
			return nil
		}

		if !r.wants(info, target) {
			return nil
		}
		r.printf("%s", rel)
		sent += info.Size()
		if r.t.DryRun {
			return nil
		}
		return copyEntry(path, target, info)
	})
	if err != nil {
		return nil, fmt.Errorf("simulated transfer %s: %w", r.t, err)
	}

	if r.has(rsync.FlagDelete) {
		if err := r.deleteExtraneous(dst, kept); err != nil {
			return nil, fmt.Errorf("simulated delete %s: %w", r.t, err)
		}
	}

	r.trailer(sent)
	return r.result(0), nil
}

func (r *run) ignored(rel string, dir bool) bool {
	if r.filter == nil {
		return false
	}
	if dir {
		return r.filter.ShouldIgnore(rel + "/")
	}
	return r.filter.ShouldIgnore(rel)
}

// wants applies rsync's quick check, and with --update skips a newer receiver.
func (r *run) wants(src fs.FileInfo, target string) bool {
	dst, err := os.Lstat(target)
	if err != nil {
		return true
	}
	if r.has(rsync.FlagUpdate) && dst.ModTime().After(src.ModTime()) {
		return false
	}
	return dst.Size() != src.Size() || !dst.ModTime().Equal(src.ModTime())
}

// deleteExtraneous removes receiver entries the sender does not have.
// Excluded entries are protected, as rsync does without --delete-excluded.
func (r *run) deleteExtraneous(dst string, kept map[string]struct{}) error {
	if _, err := os.Stat(dst); err != nil {
		return nil
	}

	var extraneous []string
	err := filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dst, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)

		if r.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := kept[rel]; ok {
			return nil
		}
		extraneous = append(extraneous, rel)
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}

	// deepest first, the way rsync reports them
	sort.Sort(sort.Reverse(sort.StringSlice(extraneous)))
	for _, rel := range extraneous {
		r.printf("deleting %s", rel)
		if r.t.DryRun {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	return nil
}

func copyEntry(src, dst string, info fs.FileInfo) error {
	if info.Mode()&fs.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dst)
		return os.Symlink(link, dst)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// Tree returns the regular files under dir as slash-separated relative paths
// mapped to their contents. Missing directories yield an empty map.
func Tree(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	return files, err
}

// Names lists the keys of a Tree result in order.
func Names(tree map[string]string) []string {
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteTree creates files under dir from rel path to content.
func WriteTree(dir string, files map[string]string) error {
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Describe is a debugging aid for assertion messages.
func Describe(tree map[string]string) string {
	return strings.Join(Names(tree), ", ")
}
