// Package runlog maintains the append-only record of runs that is mirrored
// between the local machine and the backup server.
package runlog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/HtoHe/dotfiles/internal/bnr/config"
	"github.com/HtoHe/dotfiles/internal/bnr/rsync"
	"github.com/HtoHe/dotfiles/internal/utils"
	"github.com/gofrs/flock"
)

// Delimiter closes every section.
const Delimiter = "++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++"

// HeaderLayout formats the timestamp of a section header.
const HeaderLayout = time.UnixDate

const lockSuffix = ".lock"

// PairName names the log in its transfers.
const PairName = "log"

var ErrLogLocked = errors.New("run log locked by another bnr process")

type Log struct {
	Path       string
	RemotePath string

	flock *flock.Flock
}

func New(path, remotePath string) *Log {
	return &Log{
		Path:       path,
		RemotePath: remotePath,
		flock:      flock.New(path + lockSuffix),
	}
}

// Ensure creates an empty log if none exists yet.
func (l *Log) Ensure() error {
	if err := utils.EnsureParent(l.Path); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log %s: %w", l.Path, err)
	}
	return f.Close()
}

// Lock keeps a second local run from appending to the log concurrently.
func (l *Log) Lock() error {
	if err := utils.EnsureParent(l.Path); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock log: %w", err)
	}
	if !locked {
		return ErrLogLocked
	}
	return nil
}

// Unlock releases the lock. The lock file stays, so every process locks the
// same inode.
func (l *Log) Unlock() error {
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock log: %w", err)
	}
	return nil
}

func (l *Log) pair() config.DirPair {
	return config.DirPair{Name: PairName, Local: l.Path, Remote: l.RemotePath}
}

// PullTransfer fetches the remote log unless the local copy is newer.
func (l *Log) PullTransfer(host string) rsync.Transfer {
	return rsync.Transfer{
		Direction: rsync.Pull,
		Pair:      l.pair(),
		Host:      host,
		Flags:     slices.Clone(rsync.LogPullFlags),
		File:      true,
	}
}

// PushTransfer overwrites the remote log with the local one.
func (l *Log) PushTransfer(host string) rsync.Transfer {
	return rsync.Transfer{
		Direction: rsync.Push,
		Pair:      l.pair(),
		Host:      host,
		Flags:     slices.Clone(rsync.LogPushFlags),
		File:      true,
	}
}

// Header is the first line of a section.
func Header(mode string, t time.Time) string {
	return mode + " at " + t.Format(HeaderLayout)
}

// Section buffers the output of one run. Nothing reaches the file until
// Commit, so an aborted run leaves the log as it was.
type Section struct {
	log    *Log
	header string
	body   bytes.Buffer
}

func (l *Log) NewSection(mode string, t time.Time) *Section {
	return &Section{log: l, header: Header(mode, t)}
}

func (s *Section) Write(p []byte) (int, error) {
	return s.body.Write(p)
}

func (s *Section) Header() string {
	return s.header
}

// Commit appends header, body and delimiter with a single write.
func (s *Section) Commit() error {
	var buf bytes.Buffer
	buf.WriteString(s.header)
	buf.WriteByte('\n')
	buf.Write(s.body.Bytes())
	if s.body.Len() > 0 && !bytes.HasSuffix(s.body.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	buf.WriteString(Delimiter)
	buf.WriteByte('\n')

	f, err := os.OpenFile(s.log.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log %s: %w", s.log.Path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append to log %s: %w", s.log.Path, err)
	}
	return f.Sync()
}

// Entry is one parsed section of a log file.
type Entry struct {
	Mode  string
	Time  time.Time // zero when the header timestamp does not parse
	Lines []string
}

// ReadSections parses the log at path. A trailing section without a
// delimiter, left by an interrupted writer, is still returned.
func ReadSections(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		entries []Entry
		current *Entry
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == Delimiter:
			if current != nil {
				entries = append(entries, *current)
				current = nil
			}
		case current == nil:
			if strings.TrimSpace(line) == "" {
				continue
			}
			current = parseHeader(line)
		default:
			current.Lines = append(current.Lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log %s: %w", path, err)
	}
	if current != nil {
		entries = append(entries, *current)
	}
	return entries, nil
}

func parseHeader(line string) *Entry {
	mode, stamp, ok := strings.Cut(line, " at ")
	if !ok {
		return &Entry{Mode: line}
	}
	e := &Entry{Mode: mode}
	if t, err := time.Parse(HeaderLayout, stamp); err == nil {
		e.Time = t
	}
	return e
}
