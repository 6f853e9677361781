package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrNoHeadRevision is returned by Head when the repository has no
	// commits yet.
	ErrNoHeadRevision = errors.New("no head revision")

	// ErrUnresolvableRevision is returned when a revision id does not name
	// a commit in the repository (for example after history was rewritten).
	ErrUnresolvableRevision = errors.New("unresolvable revision")

	// ErrNotRepository is returned by Open when the directory is not the
	// root of a git work tree.
	ErrNotRepository = errors.New("not a git repository root")

	// ErrUnsupportedStatus is returned when git reports a change status the
	// diff contract has no kind for (unmerged, unknown).
	ErrUnsupportedStatus = errors.New("unsupported change status")
)

// CommandError describes a failed git invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// exitCode returns the process exit status carried by err, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
