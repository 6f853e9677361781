package syncer

// ProgressReporter receives callbacks while a sync runs.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnDiffComputed is called once the change list is known.
	OnDiffComputed(changes int)

	// OnChangeApplied is called after each change is translated to an
	// index operation (or skipped).
	OnChangeApplied(path string)

	// OnCommitted is called after the batch is committed and visible.
	OnCommitted(generation uint64)
}

// NoOpProgressReporter is a progress reporter that does nothing.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnDiffComputed(changes int)    {}
func (NoOpProgressReporter) OnChangeApplied(path string)   {}
func (NoOpProgressReporter) OnCommitted(generation uint64) {}
