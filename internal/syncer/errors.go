package syncer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/nb/internal/git"
)

// Error kinds. A *Error unwraps to one of these (or to
// git.ErrUnresolvableRevision) and to its cause, so callers classify with
// errors.Is.
var (
	// ErrRenameNotSupported is returned for a Renamed change. The diff only
	// carries the new path, so the old document cannot be located.
	ErrRenameNotSupported = errors.New("rename not supported")

	// ErrIndexCommit is returned when the batch could not be committed or
	// made visible. The checkpoint is unchanged.
	ErrIndexCommit = errors.New("index commit failed")

	// ErrCheckpointIO is returned when the checkpoint could not be written
	// after a successful commit.
	ErrCheckpointIO = errors.New("checkpoint write failed")

	// ErrContentRead is returned when a changed file could not be read
	// from the working tree. The whole batch is abandoned.
	ErrContentRead = errors.New("content read failed")

	// ErrRevisionSource is returned for revision source failures other
	// than an unresolvable revision.
	ErrRevisionSource = errors.New("revision source failed")
)

// Phase names the step of the algorithm an error came from.
type Phase string

const (
	PhaseHead    Phase = "head"
	PhaseResolve Phase = "resolve"
	PhaseDiff    Phase = "diff"
	PhaseRead    Phase = "read"
	PhaseCommit  Phase = "commit"
	PhaseReload  Phase = "reload"
	PhaseSave    Phase = "save"
)

// Error is a failed sync invocation.
type Error struct {
	Phase Phase
	Kind  error
	Path  string
	From  git.RevisionID
	To    git.RevisionID
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sync %s..%s: %s", e.From.Short(), e.To.Short(), e.Phase)
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil && e.Err != e.Kind {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable reports whether invoking sync again may succeed without any
// other intervention.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrIndexCommit) ||
		errors.Is(err, ErrContentRead) ||
		errors.Is(err, ErrCheckpointIO)
}

// IsFatal reports whether err needs operator action (history rewritten,
// unsupported change) before sync can make progress.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, git.ErrUnresolvableRevision) ||
		errors.Is(err, ErrRenameNotSupported)
}
