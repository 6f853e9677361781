package syncer

import "fmt"

// State is a step of one sync invocation.
type State int

const (
	Idle State = iota
	ComputingDiff
	ApplyingBatch
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ComputingDiff:
		return "computing_diff"
	case ApplyingBatch:
		return "applying_batch"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends an invocation.
func (s State) Terminal() bool {
	return s == Committed || s == Failed
}

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	Idle:          {ComputingDiff},
	ComputingDiff: {ApplyingBatch, Committed, Failed},
	ApplyingBatch: {Committed, Failed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
