// Package bnr drives an interactive backup, restore or sync of the configured
// directory pairs against a remote host.
package bnr

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/HtoHe/dotfiles/internal/bnr/rsync"
	"github.com/HtoHe/dotfiles/internal/prompt"
)

var (
	ErrConflictingModes = errors.New("preserve (-p) and sync (-s) cannot be used together")
	ErrInputClosed      = errors.New("input closed before the run completed")
	ErrInterrupted      = prompt.ErrInterrupted
)

// Mode is the direction of a run.
type Mode int

const (
	Backup  Mode = iota // local to remote
	Restore             // remote to local
	Sync                // local to remote, then remote to local
)

func (m Mode) String() string {
	switch m {
	case Backup:
		return "Backup"
	case Restore:
		return "Restore"
	case Sync:
		return "Sync"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Options are the command line switches.
type Options struct {
	Preserve bool
	Sync     bool
}

func (o Options) Validate() error {
	if o.Preserve && o.Sync {
		return ErrConflictingModes
	}
	return nil
}

func (o Options) transferOptions() rsync.Options {
	return rsync.Options{Preserve: o.Preserve, Sync: o.Sync}
}

// TransferError reports a transfer that rsync did not complete.
type TransferError struct {
	Transfer rsync.Transfer
	ExitCode int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed: rsync exited with status %d", e.Name(), e.ExitCode)
}

// Name is the direction and pair, e.g. "push documents".
func (e *TransferError) Name() string {
	return e.Transfer.Direction.String() + " " + e.Transfer.Pair.Name
}
