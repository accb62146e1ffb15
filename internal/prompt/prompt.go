// Package prompt reads the operator's answers from a terminal or any reader.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/eiannone/keyboard"
	"github.com/mattn/go-isatty"
)

// ErrInterrupted is returned when the operator presses Ctrl+C while the
// terminal is in single-key mode and no signal is delivered.
var ErrInterrupted = errors.New("interrupted")

// Console writes prompts to out and reads answers from in. A Console is not
// safe for concurrent use.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	// readKey, when set, reads one key press without waiting for enter.
	readKey func(ctx context.Context) (rune, error)

	// pending holds the result of a line read that outlived its context.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewConsole reads whole lines from in. Key expects a line holding a single
// character.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// NewTerminal reads from stdin, in single-key mode when stdin is a terminal.
func NewTerminal(out io.Writer) *Console {
	c := NewConsole(os.Stdin, out)
	if fd := os.Stdin.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		c.readKey = keyboardKey
	}
	return c
}

// Key prompts and returns the key pressed. Zero means the answer was not a
// single character.
func (c *Console) Key(ctx context.Context, prompt string) (rune, error) {
	fmt.Fprint(c.out, prompt)

	if c.readKey != nil {
		r, err := c.readKey(ctx)
		if err != nil {
			fmt.Fprintln(c.out)
			return 0, err
		}
		if r != 0 && r != '\n' {
			fmt.Fprintf(c.out, "%c", r)
		}
		fmt.Fprintln(c.out)
		return r, nil
	}

	line, err := c.readLine(ctx)
	if err != nil {
		return 0, err
	}
	if utf8.RuneCountInString(line) != 1 {
		return 0, nil
	}
	r, _ := utf8.DecodeRuneInString(line)
	return r, nil
}

// Line prompts and returns the answer without its line terminator.
func (c *Console) Line(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	return c.readLine(ctx)
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	if c.pending == nil {
		ch := make(chan lineResult, 1)
		c.pending = ch
		go func() {
			s, err := c.in.ReadString('\n')
			if s != "" {
				err = nil
			}
			ch <- lineResult{line: strings.TrimRight(s, "\r\n"), err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-c.pending:
		c.pending = nil
		return res.line, res.err
	}
}

func keyboardKey(ctx context.Context) (rune, error) {
	events, err := keyboard.GetKeys(1)
	if err != nil {
		return 0, fmt.Errorf("failed to open keyboard: %w", err)
	}
	defer keyboard.Close()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case ev := <-events:
		if ev.Err != nil {
			return 0, ev.Err
		}
		switch ev.Key {
		case keyboard.KeyCtrlC:
			return 0, ErrInterrupted
		case keyboard.KeyCtrlD:
			return 0, io.EOF
		case keyboard.KeyEnter:
			return '\n', nil
		case keyboard.KeySpace:
			return ' ', nil
		}
		return ev.Rune, nil
	}
}
