package rsync

import (
	"fmt"
	"strconv"

	"github.com/HtoHe/dotfiles/internal/bnr/config"
)

// Direction of a single one-way transfer.
type Direction int

const (
	Push Direction = iota // local to remote
	Pull                  // remote to local
)

func (d Direction) String() string {
	switch d {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Transfer is one rsync invocation between the two sides of a pair.
type Transfer struct {
	Direction Direction
	Pair      config.DirPair
	Host      string
	Flags     []string
	DryRun    bool

	// File transfers move a single file, no trailing slash and no excludes.
	File bool
}

func (t Transfer) local() string {
	if t.File {
		return t.Pair.Local
	}
	return t.Pair.LocalArg()
}

func (t Transfer) remote() string {
	if t.File {
		return t.Host + ":" + t.Pair.Remote
	}
	return t.Pair.RemoteArg(t.Host)
}

// Source and Destination follow the direction.
func (t Transfer) Source() string {
	if t.Direction == Pull {
		return t.remote()
	}
	return t.local()
}

func (t Transfer) Destination() string {
	if t.Direction == Pull {
		return t.local()
	}
	return t.remote()
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s %s: %s -> %s", t.Direction, t.Pair.Name, t.Source(), t.Destination())
}

// Transport is the remote shell rsync tunnels through.
type Transport struct {
	Command string
	Port    int
}

func (tr Transport) String() string {
	return fmt.Sprintf("%s -p %d", tr.Command, tr.Port)
}

// Args builds the full rsync argument list for t.
func Args(t Transfer, tr Transport, filter *Filter) []string {
	args := append([]string(nil), t.Flags...)
	if t.DryRun {
		args = append(args, FlagDryRun)
	}
	args = append(args, "-e", tr.String())
	if filter != nil && !t.File {
		args = append(args, filter.Args()...)
	}
	return append(args, t.Source(), t.Destination())
}
