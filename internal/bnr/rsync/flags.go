// Package rsync assembles rsync invocations for the directory pairs and the
// run log, and runs them.
package rsync

import "slices"

const (
	FlagDelete = "--delete"
	FlagDryRun = "--dry-run"
	FlagUpdate = "--update"
)

// baseFlags apply to every directory transfer.
var baseFlags = []string{
	"--recursive",
	"--links",
	"--hard-links",
	"--perms",
	"--times",
	FlagUpdate,
	"--verbose",
	"--progress",
}

// LogPullFlags keep a local log that is newer than the remote one.
var LogPullFlags = []string{"--perms", "--times", FlagUpdate}

// LogPushFlags overwrite the remote log unconditionally.
var LogPushFlags = []string{"--perms", "--times"}

// Options select the variant of a run.
type Options struct {
	Preserve bool // keep destination-only files
	Sync     bool // transfer both ways, implies Preserve's no-delete
}

// DeleteEnabled reports whether destination files missing from the source
// are removed.
func (o Options) DeleteEnabled() bool {
	return !o.Preserve && !o.Sync
}

// BuildFlags returns a fresh copy of the transfer flags for opts.
func BuildFlags(opts Options) []string {
	flags := slices.Clone(baseFlags)
	if opts.DeleteEnabled() {
		flags = append(flags, FlagDelete)
	}
	return flags
}
