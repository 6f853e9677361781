// Package syncer keeps a document index in step with a git-versioned
// notes corpus.
//
// One call to Engine.Sync diffs the checkpointed revision against HEAD,
// translates the changes into index operations, commits them as a single
// batch and only then advances the checkpoint.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/checkpoint"
	"github.com/mvp-joe/nb/internal/git"
	"github.com/mvp-joe/nb/internal/index"
	"github.com/mvp-joe/nb/internal/logging"
	"github.com/mvp-joe/nb/internal/notes"
)

// RevisionSource lists the changes between two revisions of the corpus.
// *git.Repo implements it.
type RevisionSource interface {
	Head(ctx context.Context) (git.RevisionID, error)
	Resolve(ctx context.Context, id git.RevisionID) (git.RevisionID, error)
	Diff(ctx context.Context, from, to git.RevisionID) ([]git.ChangeRecord, error)
}

// DocumentIndex applies operation batches. *index.Index implements it.
type DocumentIndex interface {
	CommitBatch(ops []index.Operation) (uint64, error)
	Reload() error
}

// Options configures an Engine.
type Options struct {
	// Include and Ignore are glob patterns over corpus paths.
	// Empty Include uses DefaultInclude.
	Include []string
	Ignore  []string

	Logger   *zap.Logger
	Progress ProgressReporter

	// Extract derives title and sections from a note body.
	// Nil uses notes.Extract.
	Extract func(body string) notes.Fields

	// Now is the clock used for checkpoint timestamps.
	Now func() time.Time
}

// Result describes one sync invocation. It is returned for failed runs
// too, with State set to Failed.
type Result struct {
	ID         string
	State      State
	From       git.RevisionID
	To         git.RevisionID
	Upserts    int
	Deletes    int
	Skipped    int
	Generation uint64
	// NoOp is set when there was nothing to sync: no commits yet, or the
	// checkpoint already names HEAD.
	NoOp bool
	// IndexCommitted is set once the batch is durable, even if a later
	// step failed.
	IndexCommitted bool
	StartedAt      time.Time
	Duration       time.Duration
}

// Ops returns the number of index operations issued.
func (r *Result) Ops() int {
	return r.Upserts + r.Deletes
}

// Engine is the sync engine for one heap. It is safe to reuse across
// calls; callers must not run two Syncs at once.
type Engine struct {
	source RevisionSource
	index  DocumentIndex
	store  checkpoint.Store
	corpus fs.FS

	filter   *PathFilter
	logger   *zap.Logger
	progress ProgressReporter
	extract  func(string) notes.Fields
	now      func() time.Time
}

// New creates an Engine. corpus is the working tree the revision source
// describes; changed files are read from it by their slash paths.
func New(source RevisionSource, idx DocumentIndex, store checkpoint.Store, corpus fs.FS, opts Options) (*Engine, error) {
	if source == nil || idx == nil || store == nil || corpus == nil {
		return nil, errors.New("syncer: source, index, store and corpus are required")
	}
	filter, err := NewPathFilter(opts.Include, opts.Ignore)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		source:   source,
		index:    idx,
		store:    store,
		corpus:   corpus,
		filter:   filter,
		logger:   opts.Logger,
		progress: opts.Progress,
		extract:  opts.Extract,
		now:      opts.Now,
	}
	e.logger = logging.OrNop(e.logger)
	if e.progress == nil {
		e.progress = NoOpProgressReporter{}
	}
	if e.extract == nil {
		e.extract = notes.Extract
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// run carries the state of one invocation.
type run struct {
	*Result
	logger *zap.Logger
}

func (r *run) transition(to State) {
	if !canTransition(r.State, to) {
		panic(fmt.Sprintf("syncer: illegal transition %s -> %s", r.State, to))
	}
	r.logger.Debug("sync state", zap.Stringer("from", r.State), zap.Stringer("to", to))
	r.State = to
}

func (r *run) fail(phase Phase, kind error, path string, cause error) error {
	r.transition(Failed)
	return &Error{Phase: phase, Kind: kind, Path: path, From: r.From, To: r.To, Err: cause}
}

// Sync brings the index up to HEAD. It returns a Result in every case; on
// failure the error is a *Error and the checkpoint is unchanged unless
// Result.IndexCommitted is set and the failure is ErrCheckpointIO.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	started := e.now()
	r := &run{
		Result: &Result{ID: uuid.NewString(), State: Idle, StartedAt: started},
		logger: e.logger,
	}
	defer func() { r.Duration = e.now().Sub(started) }()

	r.transition(ComputingDiff)

	cp, err := e.store.Load()
	if err != nil {
		e.logger.Warn("checkpoint unreadable, syncing from the empty tree", zap.Error(err))
		cp = checkpoint.Checkpoint{}
	}
	r.From = cp.Revision
	r.Generation = cp.Generation

	to, err := e.source.Head(ctx)
	if errors.Is(err, git.ErrNoHeadRevision) {
		e.logger.Debug("no commits yet, nothing to sync")
		r.NoOp = true
		r.transition(Committed)
		return r.Result, nil
	}
	if err != nil {
		return r.Result, r.fail(PhaseHead, ErrRevisionSource, "", err)
	}
	r.To = to

	if !r.From.IsZero() {
		resolved, err := e.source.Resolve(ctx, r.From)
		if err != nil {
			kind := ErrRevisionSource
			if errors.Is(err, git.ErrUnresolvableRevision) {
				kind = git.ErrUnresolvableRevision
			}
			return r.Result, r.fail(PhaseResolve, kind, "", err)
		}
		r.From = resolved
	}

	if r.From == r.To {
		e.logger.Debug("index is up to date", zap.String("to", r.To.Short()))
		r.NoOp = true
		r.transition(Committed)
		return r.Result, nil
	}

	changes, err := e.source.Diff(ctx, r.From, r.To)
	if err != nil {
		kind := ErrRevisionSource
		if errors.Is(err, git.ErrUnresolvableRevision) {
			kind = git.ErrUnresolvableRevision
		}
		return r.Result, r.fail(PhaseDiff, kind, "", err)
	}
	e.progress.OnDiffComputed(len(changes))

	// Diff order is unspecified; sort a copy so batches are reproducible.
	changes = append([]git.ChangeRecord(nil), changes...)
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	ops, err := e.translate(r, changes)
	if err != nil {
		return r.Result, err
	}

	r.transition(ApplyingBatch)

	if len(ops) > 0 {
		gen, err := e.index.CommitBatch(ops)
		if err != nil {
			return r.Result, r.fail(PhaseCommit, ErrIndexCommit, "", err)
		}
		r.IndexCommitted = true
		r.Generation = gen

		if err := e.index.Reload(); err != nil {
			return r.Result, r.fail(PhaseReload, ErrIndexCommit, "", err)
		}
		e.progress.OnCommitted(gen)
	}

	next := checkpoint.Checkpoint{Revision: r.To, Generation: r.Generation, UpdatedAt: e.now()}
	if err := e.store.Save(next); err != nil {
		e.logger.Error("index committed but checkpoint not saved; next sync reapplies the delta",
			zap.String("to", r.To.Short()),
			zap.Uint64("generation", r.Generation),
			zap.Error(err))
		return r.Result, r.fail(PhaseSave, ErrCheckpointIO, "", err)
	}

	r.transition(Committed)
	e.logger.Info("sync committed",
		zap.String("from", r.From.Short()),
		zap.String("to", r.To.Short()),
		zap.Int("upserts", r.Upserts),
		zap.Int("deletes", r.Deletes),
		zap.Int("skipped", r.Skipped),
		zap.Uint64("generation", r.Generation))
	return r.Result, nil
}

// translate turns change records into index operations, reading the new
// content of added and modified files.
func (e *Engine) translate(r *run, changes []git.ChangeRecord) ([]index.Operation, error) {
	ops := make([]index.Operation, 0, len(changes))
	for _, change := range changes {
		path := git.NormalizePath(change.Path)
		// A rename is refused even when both ends are filtered out.
		if change.Kind == git.Renamed {
			return nil, r.fail(PhaseDiff, ErrRenameNotSupported, path, nil)
		}
		if path == "" || !e.filter.Match(path) {
			r.Skipped++
			e.progress.OnChangeApplied(path)
			continue
		}

		switch change.Kind {
		case git.Added, git.Modified:
			data, err := fs.ReadFile(e.corpus, path)
			if err != nil {
				return nil, r.fail(PhaseRead, ErrContentRead, path, err)
			}
			body := string(data)
			derived := e.extract(body)
			ops = append(ops, index.Upsert(path, index.Fields{
				Body:     body,
				Title:    derived.Title,
				Sections: derived.Sections,
			}))
			r.Upserts++
		case git.Deleted:
			ops = append(ops, index.Delete(path))
			r.Deletes++
		default:
			return nil, r.fail(PhaseDiff, ErrRevisionSource, path,
				fmt.Errorf("unknown change kind %s", change.Kind))
		}
		e.logger.Debug("change translated", zap.Stringer("kind", change.Kind), zap.String("path", path))
		e.progress.OnChangeApplied(path)
	}
	return ops, nil
}

// Pending returns the changes between the checkpoint and HEAD without
// touching the index. A repository without commits has none.
func (e *Engine) Pending(ctx context.Context) ([]git.ChangeRecord, error) {
	cp, err := e.store.Load()
	if err != nil {
		cp = checkpoint.Checkpoint{}
	}
	head, err := e.source.Head(ctx)
	if errors.Is(err, git.ErrNoHeadRevision) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cp.Revision == head {
		return nil, nil
	}
	changes, err := e.source.Diff(ctx, cp.Revision, head)
	if err != nil {
		return nil, err
	}

	var pending []git.ChangeRecord
	for _, change := range changes {
		if e.filter.Match(git.NormalizePath(change.Path)) {
			pending = append(pending, change)
		}
	}
	return pending, nil
}
