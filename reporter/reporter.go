// Package reporter contains the types used for reporting errors and
// warnings encountered while compiling CODA schema source (spec §4.3, §7).
package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ErrorReporter is invoked when an error is encountered. If it returns a
// non-nil error, the calling phase aborts with that error; if it returns
// nil, analysis continues, collecting further errors (spec §4.3:
// "does not raise exceptions for user errors; it reports them and
// returns"). Matches the teacher's reporter.ErrorReporter contract.
type ErrorReporter func(ErrorWithPos) error

// WarningReporter is invoked for non-fatal diagnostics.
type WarningReporter func(ErrorWithPos)

// Reporter bundles error and warning handling.
type Reporter interface {
	Error(ErrorWithPos) error
	Warning(ErrorWithPos)
}

// NewReporter builds a Reporter from a pair of callback functions.
func NewReporter(errs ErrorReporter, warnings WarningReporter) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

type reporterFuncs struct {
	errs     ErrorReporter
	warnings WarningReporter
}

func (r reporterFuncs) Error(err ErrorWithPos) error {
	if r.errs == nil {
		return err
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err ErrorWithPos) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// ErrorCounter is a Reporter that accumulates every reported error and
// writes formatted, optionally colorized diagnostics to an io.Writer as
// they arrive. Once MaxErrors errors have been reported (spec §4.2 "abort
// after 8 accumulated errors" for lex/parse), Error returns
// ErrTooManyErrors for that and every later error; the errors are still
// recorded and written.
type ErrorCounter struct {
	// MaxErrors caps how many errors accumulate before Error starts
	// returning ErrTooManyErrors, signalling the caller to stop. Zero
	// means unlimited.
	MaxErrors int
	Out       io.Writer
	Color     bool

	mu    sync.Mutex
	errs  []ErrorWithPos
	warns []ErrorWithPos
}

// NewErrorCounter builds an ErrorCounter writing to out, auto-detecting
// whether to colorize based on whether out is a terminal.
func NewErrorCounter(out io.Writer, maxErrors int) *ErrorCounter {
	useColor := false
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ErrorCounter{MaxErrors: maxErrors, Out: out, Color: useColor}
}

// ErrTooManyErrors is returned by ErrorCounter.Error once the number of
// reported errors reaches MaxErrors, signalling the caller to abort the
// current phase.
var ErrTooManyErrors = errorSentinel("too many errors")

type errorSentinel string

func (e errorSentinel) Error() string { return string(e) }

func (c *ErrorCounter) Error(err ErrorWithPos) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
	c.writeLocked(err, true)
	if c.MaxErrors > 0 && len(c.errs) >= c.MaxErrors {
		return ErrTooManyErrors
	}
	return nil
}

func (c *ErrorCounter) Warning(err ErrorWithPos) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warns = append(c.warns, err)
	c.writeLocked(err, false)
}

func (c *ErrorCounter) writeLocked(err ErrorWithPos, isError bool) {
	if c.Out == nil {
		return
	}
	label := "warning"
	paint := color.New(color.FgYellow)
	if isError {
		label = "error"
		paint = color.New(color.FgRed, color.Bold)
	}
	if c.Color {
		fmt.Fprintf(c.Out, "%s: %s: %v\n", err.GetPosition(), paint.Sprint(label), err.Unwrap())
	} else {
		fmt.Fprintf(c.Out, "%s: %s: %v\n", err.GetPosition(), label, err.Unwrap())
	}
}

// Count returns the number of errors reported so far.
func (c *ErrorCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Errors returns a copy of all errors reported so far.
func (c *ErrorCounter) Errors() []ErrorWithPos {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ErrorWithPos, len(c.errs))
	copy(out, c.errs)
	return out
}
