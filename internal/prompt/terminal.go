// Package prompt asks the operator yes/no questions on a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"cratedigger/internal/core"
	"cratedigger/internal/i18n"
)

var ErrNotTerminal = errors.New("operator confirmation needs an interactive terminal")

var answers = map[string]core.Decision{
	"y":    core.DecisionYes,
	"yes":  core.DecisionYes,
	"j":    core.DecisionYes,
	"ja":   core.DecisionYes,
	"n":    core.DecisionNo,
	"no":   core.DecisionNo,
	"nei":  core.DecisionNo,
	"nein": core.DecisionNo,
}

// Terminal implements core.Prompter on a line-oriented reader and writer.
// It is not safe for concurrent use.
type Terminal struct {
	in        *bufio.Reader
	out       io.Writer
	localizer *i18n.Localizer

	// pending is the read still in flight after a cancelled prompt
	pending chan lineResult
}

func NewTerminal(in io.Reader, out io.Writer, localizer *i18n.Localizer) *Terminal {
	if localizer == nil {
		localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}
	return &Terminal{
		in:        bufio.NewReader(in),
		out:       out,
		localizer: localizer,
	}
}

// NewStdio returns a Terminal on stdin/stdout, or ErrNotTerminal when stdin is not a TTY.
func NewStdio(localizer *i18n.Localizer) (*Terminal, error) {
	if !IsTerminal(os.Stdin) {
		return nil, ErrNotTerminal
	}
	return NewTerminal(os.Stdin, os.Stdout, localizer), nil
}

// IsTerminal reports whether r is a terminal device.
func IsTerminal(r any) bool {
	file, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// AskYesNo prints prompt and waits for a y/n answer, asking again on anything else.
// Closed input answers no.
func (t *Terminal) AskYesNo(ctx context.Context, prompt string) (core.Decision, error) {
	for {
		if _, err := fmt.Fprint(t.out, prompt+t.localizer.T("prompt.yes_no")); err != nil {
			return core.DecisionNo, fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := t.readLine(ctx)
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(t.out)
			return core.DecisionNo, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return core.DecisionNo, err
		}

		if decision, ok := answers[strings.ToLower(strings.TrimSpace(line))]; ok {
			return decision, nil
		}
		if errors.Is(err, io.EOF) {
			return core.DecisionNo, nil
		}

		fmt.Fprintln(t.out, t.localizer.T("prompt.invalid"))
	}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns early with ctx.Err() on cancellation. At most one read is in flight: a
// read abandoned by a cancelled prompt hands its line to the next call.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	if t.pending == nil {
		result := make(chan lineResult, 1)
		t.pending = result
		go func() {
			line, err := t.in.ReadString('\n')
			result <- lineResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-t.pending:
		t.pending = nil
		return r.line, r.err
	}
}
