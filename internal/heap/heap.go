// Package heap ties a notes directory to its search index.
//
// A heap is a git work tree of notes plus a private .nb directory holding
// the index, the checkpoint, the sync journal and a lock file. Every
// command that reads the index syncs it first.
package heap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/checkpoint"
	"github.com/mvp-joe/nb/internal/config"
	"github.com/mvp-joe/nb/internal/git"
	"github.com/mvp-joe/nb/internal/index"
	"github.com/mvp-joe/nb/internal/journal"
	"github.com/mvp-joe/nb/internal/logging"
	"github.com/mvp-joe/nb/internal/syncer"
)

var (
	// ErrHeapLocked is returned when another sync or reset holds the heap,
	// in this process or another one.
	ErrHeapLocked = errors.New("heap is locked by another sync")

	// ErrHeapExists is returned by Init for a non-empty directory.
	ErrHeapExists = errors.New("directory exists and is not empty")

	// ErrNotHeap is returned by Open when the directory is not a heap.
	ErrNotHeap = errors.New("not a heap")
)

const (
	indexDirName = "index"
	lockFileName = "lock"

	// journalKeep is how many sync runs the journal retains.
	journalKeep = 500
)

// Options carries the collaborators a Heap does not build itself.
type Options struct {
	Logger   *zap.Logger
	Progress syncer.ProgressReporter
	// LockTimeout bounds how long Open waits for a heap held open by
	// another process. Zero means one second.
	LockTimeout time.Duration
	// Editor opens path for interactive editing. Nil runs the configured
	// editor command.
	Editor EditorFunc
}

// Heap is an opened notes heap.
type Heap struct {
	root    string
	private string
	cfg     *config.Config

	repo    *git.Repo
	index   *index.Index
	store   checkpoint.Store
	journal *journal.Journal
	engine  *syncer.Engine

	// mu excludes syncs within this process; lock excludes other
	// processes. flock.TryLock succeeds again on a handle it already holds.
	mu   sync.Mutex
	lock *flock.Flock

	logger *zap.Logger
	editor EditorFunc
	closed bool
}

// Init creates a heap at path. The directory may exist only if it is empty.
func Init(ctx context.Context, path string, cfg *config.Config, opts Options) (*Heap, error) {
	entries, err := os.ReadDir(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrHeapExists, path)
	}

	if _, err := git.Init(ctx, path, git.Options{DetectRenames: cfg.Revision.DetectRenames}); err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(path, config.PrivateDirName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create private directory: %w", err)
	}
	return Open(ctx, path, cfg, opts)
}

// Open opens the heap at path, creating its private directory contents
// (index, checkpoint store, journal) when missing.
func Open(ctx context.Context, path string, cfg *config.Config, opts Options) (*Heap, error) {
	repo, err := git.Open(ctx, path, git.Options{DetectRenames: cfg.Revision.DetectRenames})
	if err != nil {
		if errors.Is(err, git.ErrNotRepository) {
			return nil, fmt.Errorf("%w: %s (run `nb init` first)", ErrNotHeap, path)
		}
		return nil, err
	}

	logger := logging.OrNop(opts.Logger)

	root := repo.Root()
	private := filepath.Join(root, config.PrivateDirName)
	if err := os.MkdirAll(private, 0755); err != nil {
		return nil, fmt.Errorf("failed to create private directory: %w", err)
	}
	// Heaps created by other tools may lack the exclude rule.
	if err := repo.AddIgnoreRule(ctx, "/"+config.PrivateDirName+"/"); err != nil {
		return nil, err
	}

	h := &Heap{
		root:    root,
		private: private,
		cfg:     cfg,
		repo:    repo,
		lock:    flock.New(filepath.Join(private, lockFileName)),
		logger:  logger,
		editor:  opts.Editor,
	}
	if h.editor == nil {
		h.editor = CommandEditor(cfg.Editor)
	}

	h.index, err = index.Open(filepath.Join(private, indexDirName), index.Options{
		MaxResults:  cfg.Index.MaxResults,
		CacheSize:   cfg.Index.CacheSize,
		LockTimeout: opts.LockTimeout,
		Logger:      logger.Named("index"),
	})
	if errors.Is(err, index.ErrLocked) {
		return nil, fmt.Errorf("%w: %s is open in another process", ErrHeapLocked, root)
	}
	if err != nil {
		return nil, err
	}

	h.store, err = checkpoint.OpenBackend(cfg.Checkpoint.Backend, private, logger)
	if err != nil {
		h.Close()
		return nil, err
	}

	h.journal, err = journal.Open(filepath.Join(private, journal.FileName))
	if err != nil {
		h.Close()
		return nil, err
	}

	h.engine, err = syncer.New(repo, h.index, h.store, os.DirFS(root), syncer.Options{
		Include:  cfg.Corpus.Include,
		Ignore:   cfg.Corpus.Ignore,
		Logger:   logger.Named("sync"),
		Progress: opts.Progress,
	})
	if err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Root returns the heap's work tree directory.
func (h *Heap) Root() string {
	return h.root
}

// Repo returns the heap's revision source.
func (h *Heap) Repo() *git.Repo {
	return h.repo
}

// Sync brings the index up to the latest commit. Only one process may
// sync a heap at a time; a concurrent attempt fails with ErrHeapLocked.
// The run is recorded in the journal whether or not it succeeds.
func (h *Heap) Sync(ctx context.Context) (*syncer.Result, error) {
	release, err := h.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	res, syncErr := h.engine.Sync(ctx)
	h.record(res, syncErr)
	return res, syncErr
}

// acquire takes the in-process and cross-process sync locks without
// waiting.
func (h *Heap) acquire() (func(), error) {
	if !h.mu.TryLock() {
		return nil, ErrHeapLocked
	}
	locked, err := h.lock.TryLock()
	if err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("failed to acquire heap lock: %w", err)
	}
	if !locked {
		h.mu.Unlock()
		return nil, ErrHeapLocked
	}
	return func() {
		if err := h.lock.Unlock(); err != nil {
			h.logger.Warn("failed to release heap lock", zap.Error(err))
		}
		h.mu.Unlock()
	}, nil
}

func (h *Heap) record(res *syncer.Result, syncErr error) {
	if res == nil || res.NoOp && syncErr == nil {
		return
	}
	run := journal.Run{
		ID:         res.ID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.StartedAt.Add(res.Duration),
		State:      res.State.String(),
		From:       string(res.From),
		To:         string(res.To),
		Upserts:    res.Upserts,
		Deletes:    res.Deletes,
		Skipped:    res.Skipped,
		Generation: res.Generation,
	}
	if syncErr != nil {
		run.Error = syncErr.Error()
	}
	if err := h.journal.Record(run); err != nil {
		h.logger.Warn("failed to record sync run", zap.String("run", res.ID), zap.Error(err))
		return
	}
	if _, err := h.journal.Prune(journalKeep); err != nil {
		h.logger.Warn("failed to prune sync journal", zap.Error(err))
	}
}

// Find syncs the heap and runs query. A heap locked by another syncer is
// searched as it stands.
func (h *Heap) Find(ctx context.Context, query string, limit int) ([]index.Document, error) {
	if _, err := h.Sync(ctx); err != nil {
		if !errors.Is(err, ErrHeapLocked) {
			return nil, err
		}
		h.logger.Warn("heap is being synced elsewhere; results may be stale")
	}
	return h.index.QueryN(query, limit)
}

// Reset forgets the checkpoint and empties the index so the next sync
// reindexes every note from scratch.
func (h *Heap) Reset(ctx context.Context) error {
	release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := h.store.Reset(); err != nil {
		return err
	}
	gen, err := h.index.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if err := h.index.Reload(); err != nil {
		return fmt.Errorf("failed to reload index: %w", err)
	}
	h.logger.Info("heap reset", zap.Uint64("generation", gen))
	return nil
}

// Status summarizes the heap's sync state.
type Status struct {
	Root       string
	Branch     string
	Head       git.RevisionID
	Checkpoint checkpoint.Checkpoint
	Generation uint64
	Documents  uint64
	Pending    int
}

// UpToDate reports whether the checkpoint names HEAD.
func (s Status) UpToDate() bool {
	return s.Head == s.Checkpoint.Revision
}

// Status reports the heap's state without syncing.
func (h *Heap) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Root:       h.root,
		Branch:     h.repo.CurrentBranch(ctx),
		Generation: h.index.Generation(),
	}

	head, err := h.repo.Head(ctx)
	if err != nil && !errors.Is(err, git.ErrNoHeadRevision) {
		return nil, err
	}
	st.Head = head

	if st.Checkpoint, err = h.store.Load(); err != nil {
		h.logger.Warn("checkpoint unreadable", zap.Error(err))
	}
	if st.Documents, err = h.index.Count(); err != nil {
		return nil, err
	}

	pending, err := h.engine.Pending(ctx)
	if err != nil {
		return nil, err
	}
	st.Pending = len(pending)
	return st, nil
}

// History returns the most recent recorded sync runs.
func (h *Heap) History(limit int) ([]journal.Run, error) {
	return h.journal.Recent(limit)
}

// Close releases the index, checkpoint store and journal.
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	if h.index != nil {
		errs = append(errs, h.index.Close())
	}
	if h.store != nil {
		errs = append(errs, h.store.Close())
	}
	if h.journal != nil {
		errs = append(errs, h.journal.Close())
	}
	return errors.Join(errs...)
}

// WatchDebounce returns the configured debounce for sync --watch.
func (h *Heap) WatchDebounce() time.Duration {
	return time.Duration(h.cfg.Watch.DebounceMS) * time.Millisecond
}
