package bnr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/HtoHe/dotfiles/internal/bnr/config"
	"github.com/HtoHe/dotfiles/internal/bnr/journal"
	"github.com/HtoHe/dotfiles/internal/bnr/pager"
	"github.com/HtoHe/dotfiles/internal/bnr/rsync"
	"github.com/HtoHe/dotfiles/internal/bnr/runlog"
	"github.com/HtoHe/dotfiles/internal/utils"
)

const (
	promptIntent  = "Type B for backup or R for restore: "
	promptAddress = "Enter Server IP address: "
	promptConfirm = "Proceed? [Y/N]: "
)

// Prompter reads the operator's answers.
type Prompter interface {
	Key(ctx context.Context, prompt string) (rune, error)
	Line(ctx context.Context, prompt string) (string, error)
}

// Recorder keeps the history of attempts.
type Recorder interface {
	Record(ctx context.Context, run *journal.Run) error
}

type Params struct {
	Config   *config.Config
	Options  Options
	Executor rsync.Executor
	Prompter Prompter
	Pager    pager.Pager
	Out      io.Writer

	// Journal is optional.
	Journal Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	cfg      *config.Config
	opts     Options
	exec     rsync.Executor
	prompter Prompter
	pager    pager.Pager
	out      io.Writer
	journal  Recorder
	now      func() time.Time

	log   *runlog.Log
	flags []string
}

func New(p Params) (*Controller, error) {
	if err := p.Options.Validate(); err != nil {
		return nil, err
	}
	if p.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p.Executor == nil || p.Prompter == nil || p.Pager == nil {
		return nil, errors.New("executor, prompter and pager are required")
	}

	c := &Controller{
		cfg:      p.Config,
		opts:     p.Options,
		exec:     p.Executor,
		prompter: p.Prompter,
		pager:    p.Pager,
		out:      p.Out,
		journal:  p.Journal,
		now:      p.Now,
		log:      runlog.New(p.Config.LogPath, p.Config.RemoteLogPath),
		flags:    rsync.BuildFlags(p.Options.transferOptions()),
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

type state int

const (
	stateAwaitIntent state = iota
	stateAwaitAddress
	statePreview
	stateAwaitConfirmation
	stateExecute
	stateCancel
	stateDone
)

func (s state) String() string {
	return [...]string{
		"AwaitIntent", "AwaitAddress", "Preview", "AwaitConfirmation", "Execute", "Cancel", "Done",
	}[s]
}

// attempt is one pass from the first prompt to Execute or Cancel.
type attempt struct {
	mode    Mode
	host    string
	scratch string
	started time.Time
}

// discard removes the preview file if there is one.
func (a *attempt) discard() {
	if a.scratch == "" {
		return
	}
	if err := os.Remove(a.scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove preview", "path", a.scratch, "error", err)
	}
	a.scratch = ""
}

// Run loops until one attempt executes. It returns nil once the transfers
// and the log push succeed.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.prepare(); err != nil {
		return err
	}

	a := &attempt{}
	defer a.discard()

	st := c.initial()
	for st != stateDone {
		slog.Debug("bnr state", "state", st, "mode", a.mode, "host", a.host)
		next, err := c.step(ctx, st, a)
		if err != nil {
			return err
		}
		st = next
	}
	return nil
}

// prepare creates the local side of every pair.
func (c *Controller) prepare() error {
	for _, pair := range c.cfg.Pairs {
		if err := utils.EnsureDir(pair.Local); err != nil {
			return fmt.Errorf("failed to create %s: %w", pair.Local, err)
		}
	}
	return nil
}

func (c *Controller) initial() state {
	if c.opts.Sync {
		return stateAwaitAddress
	}
	return stateAwaitIntent
}

func (c *Controller) step(ctx context.Context, st state, a *attempt) (state, error) {
	switch st {
	case stateAwaitIntent:
		return c.awaitIntent(ctx, a)
	case stateAwaitAddress:
		return c.awaitAddress(ctx, a)
	case statePreview:
		return c.preview(ctx, a)
	case stateAwaitConfirmation:
		return c.awaitConfirmation(ctx)
	case stateExecute:
		return c.execute(ctx, a)
	case stateCancel:
		return c.cancel(ctx, a)
	default:
		return stateDone, fmt.Errorf("unknown state %d", st)
	}
}

func (c *Controller) awaitIntent(ctx context.Context, a *attempt) (state, error) {
	key, err := c.prompter.Key(ctx, promptIntent)
	if err != nil {
		return stateDone, c.inputError(ctx, err)
	}

	switch key {
	case 'b', 'B':
		a.mode = Backup
	case 'r', 'R':
		a.mode = Restore
	default:
		fmt.Fprintln(c.out, "Invalid input. Type B or R.")
		return stateAwaitIntent, nil
	}
	return stateAwaitAddress, nil
}

func (c *Controller) awaitAddress(ctx context.Context, a *attempt) (state, error) {
	if c.opts.Sync {
		a.mode = Sync
	}

	host, err := c.prompter.Line(ctx, promptAddress)
	if err != nil {
		return stateDone, c.inputError(ctx, err)
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return stateAwaitAddress, nil
	}

	a.host = host
	a.started = c.now()
	return statePreview, nil
}

// preview dry-runs every planned transfer into a scratch file and pages it.
func (c *Controller) preview(ctx context.Context, a *attempt) (state, error) {
	f, err := os.CreateTemp(c.cfg.ScratchDir, "bnr-preview-*.log")
	if err != nil {
		return stateDone, fmt.Errorf("failed to create preview file: %w", err)
	}
	a.scratch = f.Name()

	failed, err := c.dryRun(ctx, a, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write preview: %w", cerr)
	}
	if err != nil {
		return stateDone, err
	}

	if failed != nil {
		fmt.Fprintf(c.out, "Preview failed: %v\n", failed)
		slog.Warn("preview failed", "transfer", failed.Name(), "exit", failed.ExitCode, "host", a.host)
		a.discard()
		return c.initial(), nil
	}

	if err := c.pager.Show(ctx, a.scratch); err != nil {
		if ctx.Err() != nil {
			return stateDone, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
		}
		return stateDone, err
	}
	return stateAwaitConfirmation, nil
}

func (c *Controller) dryRun(ctx context.Context, a *attempt, w io.Writer) (*TransferError, error) {
	for _, t := range c.plan(a.mode, a.host, true) {
		res, err := c.exec.Run(ctx, t, w)
		if err != nil {
			return nil, c.runError(ctx, err)
		}
		if !res.OK() {
			return &TransferError{Transfer: t, ExitCode: res.ExitCode}, nil
		}
	}
	return nil, nil
}

func (c *Controller) awaitConfirmation(ctx context.Context) (state, error) {
	answer, err := c.prompter.Line(ctx, promptConfirm)
	if err != nil {
		return stateDone, c.inputError(ctx, err)
	}
	if answer == "y" || answer == "Y" {
		return stateExecute, nil
	}
	return stateCancel, nil
}

func (c *Controller) cancel(ctx context.Context, a *attempt) (state, error) {
	a.discard()
	fmt.Fprintln(c.out, "Cancelled.")
	c.record(ctx, a, journal.StatusCancelled, "", 0)

	*a = attempt{}
	return c.initial(), nil
}

// execute pulls the log, runs the transfers, then appends a section and
// pushes the log back. A failed transfer aborts before the log is appended.
func (c *Controller) execute(ctx context.Context, a *attempt) (state, error) {
	a.discard()

	lines, err := c.transfer(ctx, a)
	if err != nil {
		var te *TransferError
		if errors.As(err, &te) {
			c.record(ctx, a, journal.StatusFailed, te.Name(), lines)
		}
		return stateDone, err
	}

	c.record(ctx, a, journal.StatusCompleted, "", lines)
	fmt.Fprintf(c.out, "%s complete.\n", a.mode)
	return stateDone, nil
}

func (c *Controller) transfer(ctx context.Context, a *attempt) (int, error) {
	if err := c.log.Lock(); err != nil {
		return 0, err
	}
	defer func() {
		if err := c.log.Unlock(); err != nil {
			slog.Warn("failed to unlock run log", "error", err)
		}
	}()

	// pull before creating the local log, an empty new file would be newer
	// than the remote one and --update would skip it
	pull := c.log.PullTransfer(a.host)
	res, err := c.exec.Run(ctx, pull, c.out)
	if err != nil {
		return 0, c.runError(ctx, err)
	}
	switch {
	case res.OK():
	case res.SourceMissing():
		slog.Warn("no remote run log yet, starting from the local one", "remote", pull.Source())
	default:
		return 0, &TransferError{Transfer: pull, ExitCode: res.ExitCode}
	}

	if err := c.log.Ensure(); err != nil {
		return 0, err
	}

	section := c.log.NewSection(a.mode.String(), c.now())
	w := io.MultiWriter(c.out, section)

	var lines int
	for _, t := range c.plan(a.mode, a.host, false) {
		res, err := c.exec.Run(ctx, t, w)
		if err != nil {
			return lines, c.runError(ctx, err)
		}
		lines += len(res.Lines)
		if !res.OK() {
			return lines, &TransferError{Transfer: t, ExitCode: res.ExitCode}
		}
	}

	if err := section.Commit(); err != nil {
		return lines, err
	}

	push := c.log.PushTransfer(a.host)
	res, err = c.exec.Run(ctx, push, c.out)
	if err != nil {
		return lines, c.runError(ctx, err)
	}
	if !res.OK() {
		return lines, &TransferError{Transfer: push, ExitCode: res.ExitCode}
	}
	return lines, nil
}

// plan lists the transfers of a mode in execution order.
func (c *Controller) plan(mode Mode, host string, dryRun bool) []rsync.Transfer {
	var directions []rsync.Direction
	switch mode {
	case Backup:
		directions = []rsync.Direction{rsync.Push}
	case Restore:
		directions = []rsync.Direction{rsync.Pull}
	case Sync:
		directions = []rsync.Direction{rsync.Push, rsync.Pull}
	}

	transfers := make([]rsync.Transfer, 0, len(directions)*len(c.cfg.Pairs))
	for _, d := range directions {
		for _, pair := range c.cfg.Pairs {
			transfers = append(transfers, rsync.Transfer{
				Direction: d,
				Pair:      pair,
				Host:      host,
				Flags:     c.flags,
				DryRun:    dryRun,
			})
		}
	}
	return transfers
}

func (c *Controller) record(ctx context.Context, a *attempt, status journal.Status, failed string, lines int) {
	if c.journal == nil {
		return
	}

	run := &journal.Run{
		Mode:           a.mode.String(),
		Host:           a.host,
		Preserve:       c.opts.Preserve,
		Status:         status,
		FailedTransfer: failed,
		Lines:          lines,
		StartedAt:      a.started,
		FinishedAt:     c.now(),
	}
	// recorded even when interrupted
	if err := c.journal.Record(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}

func (c *Controller) inputError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return ErrInputClosed
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	default:
		return err
	}
}

func (c *Controller) runError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
	return err
}
