package cli

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/state"
	"github.com/klauern/marksync/internal/sync"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitItemFailure = 2
	ExitUnreachable = 3
	ExitFatal       = 4
)

// exitError attaches an exit code to an error without hiding it from
// errors.Is.
type exitError struct {
	err  error
	code int
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
func (e *exitError) ExitCode() int { return e.code }

var _ cli.ExitCoder = (*exitError)(nil)

// withExitCode classifies err into an exit code.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return err
	}
	return &exitError{err: err, code: classify(err)}
}

func classify(err error) int {
	switch {
	case errors.Is(err, sync.ErrUnreachable):
		return ExitUnreachable
	case errors.Is(err, adapter.ErrAuth),
		errors.Is(err, state.ErrCorrupt),
		errors.Is(err, state.ErrUnsupportedVersion),
		errors.Is(err, state.ErrLocked),
		errors.Is(err, sync.ErrRunInProgress):
		return ExitFatal
	default:
		return ExitError
	}
}

// itemFailures reports a run that finished with failed writes.
func itemFailures(n int) error {
	return cli.Exit(fmt.Sprintf("sync finished with %d failed item(s)", n), ExitItemFailure)
}

// ExitCode returns the process exit code for an error returned by Run.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return classify(err)
}
