package rsync

import (
	"slices"
	"testing"

	"github.com/HtoHe/dotfiles/internal/bnr/config"
	"github.com/stretchr/testify/assert"
)

var testTransport = Transport{Command: "ssh", Port: 8022}

func TestArgs_PushAndPull(t *testing.T) {
	pair := config.DirPair{Name: "documents", Local: "/home/op/documents", Remote: "backup/documents/"}
	flags := BuildFlags(Options{})

	push := Args(Transfer{Direction: Push, Pair: pair, Host: "10.0.0.2", Flags: flags}, testTransport, nil)
	assert.Equal(t, append(append([]string(nil), flags...),
		"-e", "ssh -p 8022",
		"/home/op/documents/", "10.0.0.2:backup/documents/",
	), push)

	pull := Args(Transfer{Direction: Pull, Pair: pair, Host: "10.0.0.2", Flags: flags, DryRun: true}, testTransport, nil)
	n := len(pull)
	assert.Equal(t, "10.0.0.2:backup/documents/", pull[n-2])
	assert.Equal(t, "/home/op/documents/", pull[n-1])
	assert.Contains(t, pull, FlagDryRun)
}

func TestArgs_PairsStayAligned(t *testing.T) {
	pairs := []config.DirPair{
		{Name: "documents", Local: "/l/documents", Remote: "backup/documents"},
		{Name: "projects", Local: "/l/projects", Remote: "backup/projects"},
	}
	filter := NewFilter()

	for i, pair := range pairs {
		for _, dir := range []Direction{Push, Pull} {
			args := Args(Transfer{Direction: dir, Pair: pair, Host: "h", Flags: BuildFlags(Options{})}, testTransport, filter)
			endpoints := args[len(args)-2:]

			assert.Contains(t, endpoints, pairs[i].LocalArg())
			assert.Contains(t, endpoints, pairs[i].RemoteArg("h"))
			for j, other := range pairs {
				if j == i {
					continue
				}
				assert.False(t, slices.Contains(args, other.LocalArg()))
				assert.False(t, slices.Contains(args, other.RemoteArg("h")))
			}
		}
	}
}

func TestArgs_FileTransferSkipsExcludesAndSlash(t *testing.T) {
	logPair := config.DirPair{Name: "log", Local: "/work/bnr.log", Remote: "bnr.log"}
	args := Args(Transfer{Direction: Pull, Pair: logPair, Host: "h", Flags: LogPullFlags, File: true}, testTransport, NewFilter())

	assert.Equal(t, []string{"--perms", "--times", "--update", "-e", "ssh -p 8022", "h:bnr.log", "/work/bnr.log"}, args)
}

func TestTransferString(t *testing.T) {
	tr := Transfer{Direction: Push, Pair: config.DirPair{Name: "projects", Local: "/p", Remote: "backup/projects"}, Host: "srv"}
	assert.Equal(t, "push projects: /p/ -> srv:backup/projects/", tr.String())
	assert.Equal(t, "pull", Pull.String())
}
