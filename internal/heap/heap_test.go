package heap

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/nb/internal/config"
)

// Integration tests for heaps. They drive real git, so they run
// sequentially (NO t.Parallel()).

// writingEditor returns an editor that writes content to the file.
func writingEditor(content string) EditorFunc {
	return func(ctx context.Context, path string) error {
		return os.WriteFile(path, []byte(content), 0644)
	}
}

func noopEditor(ctx context.Context, path string) error { return nil }

func newTestHeap(t *testing.T, cfg *config.Config, editor EditorFunc) *Heap {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	dir := filepath.Join(t.TempDir(), "heap")

	h, err := Init(context.Background(), dir, cfg, Options{Editor: editor})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "commit.gpgsign", "false")
	return h
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
}

func findPaths(t *testing.T, h *Heap, query string) []string {
	t.Helper()
	docs, err := h.Find(context.Background(), query, 0)
	require.NoError(t, err)
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	return paths
}

func TestInit_RejectsNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.md"), []byte("x"), 0644))

	_, err := Init(context.Background(), dir, config.Default(), Options{})
	require.ErrorIs(t, err, ErrHeapExists)
}

func TestOpen_RejectsNonHeap(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir(), config.Default(), Options{})
	require.ErrorIs(t, err, ErrNotHeap)
}

func TestHeap_EmptyHeapSearchesNothing(t *testing.T) {
	h := newTestHeap(t, nil, noopEditor)
	assert.Empty(t, findPaths(t, h, "anything"))
}

func TestHeap_AddCommitsAndIndexes(t *testing.T) {
	h := newTestHeap(t, nil, writingEditor("# Groceries\n\noat milk and lentils\n"))
	ctx := context.Background()

	path, err := h.Add(ctx, "lists/groceries.md")
	require.NoError(t, err)
	assert.Equal(t, "lists/groceries.md", path)

	assert.Equal(t, []string{"lists/groceries.md"}, findPaths(t, h, "lentils"))

	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
	assert.Equal(t, uint64(1), st.Documents)
	assert.Zero(t, st.Pending)
	assert.False(t, st.Head.IsZero())
}

func TestHeap_AddGeneratesName(t *testing.T) {
	h := newTestHeap(t, nil, writingEditor("an unnamed thought about herons\n"))

	path, err := h.Add(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".md"))
	assert.Len(t, strings.TrimSuffix(path, ".md"), 36)
	assert.Equal(t, []string{path}, findPaths(t, h, "herons"))
}

func TestHeap_AddRejectsEmptyAndExisting(t *testing.T) {
	ctx := context.Background()

	empty := newTestHeap(t, nil, noopEditor)
	_, err := empty.Add(ctx, "blank.md")
	require.ErrorIs(t, err, ErrEmptyNote)
	_, statErr := os.Stat(filepath.Join(empty.Root(), "blank.md"))
	assert.True(t, os.IsNotExist(statErr))

	h := newTestHeap(t, nil, writingEditor("content"))
	_, err = h.Add(ctx, "a.md")
	require.NoError(t, err)
	_, err = h.Add(ctx, "a.md")
	require.ErrorIs(t, err, ErrNoteExists)
}

func TestHeap_RejectsInvalidNotePaths(t *testing.T) {
	h := newTestHeap(t, nil, writingEditor("x"))
	ctx := context.Background()

	for _, rel := range []string{"../escape.md", ".nb/index.md", ".git/config", "."} {
		_, err := h.Add(ctx, rel)
		assert.ErrorIs(t, err, ErrInvalidNotePath, "path %q", rel)
	}
}

func TestHeap_EditReplacesContent(t *testing.T) {
	ctx := context.Background()
	content := "first version about otters\n"
	editor := func(ctx context.Context, path string) error {
		return os.WriteFile(path, []byte(content), 0644)
	}
	h := newTestHeap(t, nil, editor)

	_, err := h.Add(ctx, "animals.md")
	require.NoError(t, err)
	require.Equal(t, []string{"animals.md"}, findPaths(t, h, "otters"))

	content = "second version about beavers\n"
	_, err = h.Edit(ctx, "animals.md")
	require.NoError(t, err)

	assert.Empty(t, findPaths(t, h, "otters"))
	assert.Equal(t, []string{"animals.md"}, findPaths(t, h, "beavers"))

	runs, err := h.History(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 1, runs[0].Upserts)
	assert.Equal(t, "committed", runs[0].State)
}

func TestHeap_EditUnsavedNewNoteIsNoOp(t *testing.T) {
	h := newTestHeap(t, nil, noopEditor)

	path, err := h.Edit(context.Background(), "never-saved.md")
	require.NoError(t, err)
	assert.Equal(t, "never-saved.md", path)

	runs, err := h.History(10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestHeap_SyncPicksUpExternalCommits(t *testing.T) {
	h := newTestHeap(t, nil, noopEditor)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(h.Root(), "outside.md"), []byte("committed by hand: pelican"), 0644))
	runGit(t, h.Root(), "add", "outside.md")
	runGit(t, h.Root(), "commit", "-q", "-m", "manual")

	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Pending)
	assert.False(t, st.UpToDate())

	assert.Equal(t, []string{"outside.md"}, findPaths(t, h, "pelican"))
}

func TestHeap_SyncFailsWhenLocked(t *testing.T) {
	h := newTestHeap(t, nil, noopEditor)
	ctx := context.Background()

	other := flock.New(filepath.Join(h.Root(), config.PrivateDirName, lockFileName))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = h.Sync(ctx)
	require.ErrorIs(t, err, ErrHeapLocked)
	require.ErrorIs(t, h.Reset(ctx), ErrHeapLocked)

	// Find still answers from the current index.
	docs, err := h.Find(ctx, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, other.Unlock())
	_, err = h.Sync(ctx)
	require.NoError(t, err)
}

func TestHeap_SyncExcludesCallersInSameProcess(t *testing.T) {
	h := newTestHeap(t, nil, noopEditor)
	ctx := context.Background()

	release, err := h.acquire()
	require.NoError(t, err)

	_, err = h.Sync(ctx)
	require.ErrorIs(t, err, ErrHeapLocked)
	require.ErrorIs(t, h.Reset(ctx), ErrHeapLocked)
	// The refused callers must not release the lock they never took.
	assert.True(t, h.lock.Locked())

	release()
	assert.False(t, h.lock.Locked())
	_, err = h.Sync(ctx)
	require.NoError(t, err)
}

func TestHeap_ConcurrentSyncsInSameProcess(t *testing.T) {
	h := newTestHeap(t, nil, writingEditor("tern colony"))
	ctx := context.Background()

	_, err := h.Add(ctx, "tern.md")
	require.NoError(t, err)
	require.NoError(t, h.Reset(ctx))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		upserts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.Sync(ctx)
			if errors.Is(err, ErrHeapLocked) {
				return
			}
			assert.NoError(t, err)
			mu.Lock()
			upserts += res.Upserts
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, upserts)
	assert.False(t, h.lock.Locked())
	assert.Equal(t, []string{"tern.md"}, findPaths(t, h, "tern"))
}

func TestOpen_HeldByAnotherHandle(t *testing.T) {
	h := newTestHeap(t, nil, noopEditor)
	ctx := context.Background()

	_, err := Open(ctx, h.Root(), config.Default(), Options{LockTimeout: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrHeapLocked)

	require.NoError(t, h.Close())
	reopened, err := Open(ctx, h.Root(), config.Default(), Options{LockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, reopened.Close())
}

func TestHeap_ResetDropsDeletedNotes(t *testing.T) {
	h := newTestHeap(t, nil, writingEditor("grey heron"))
	ctx := context.Background()

	_, err := h.Add(ctx, "heron.md")
	require.NoError(t, err)
	require.Equal(t, []string{"heron.md"}, findPaths(t, h, "heron"))

	runGit(t, h.Root(), "rm", "-q", "heron.md")
	runGit(t, h.Root(), "commit", "-q", "-m", "remove heron")

	require.NoError(t, h.Reset(ctx))
	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Documents)

	assert.Empty(t, findPaths(t, h, "heron"))
	st, err = h.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Documents)
	assert.True(t, st.UpToDate())
}

func TestHeap_ResetReindexes(t *testing.T) {
	h := newTestHeap(t, nil, writingEditor("ibis notes"))
	ctx := context.Background()

	_, err := h.Add(ctx, "birds.md")
	require.NoError(t, err)

	require.NoError(t, h.Reset(ctx))
	st, err := h.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Checkpoint.IsZero())
	assert.Equal(t, 1, st.Pending)

	res, err := h.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserts)

	st, err = h.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Documents)
	assert.True(t, st.UpToDate())
}

func TestHeap_ReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	h := newTestHeap(t, nil, writingEditor("persistent puffin"))

	_, err := h.Add(ctx, "p.md")
	require.NoError(t, err)
	root := h.Root()
	require.NoError(t, h.Close())

	reopened, err := Open(ctx, root, config.Default(), Options{Editor: noopEditor})
	require.NoError(t, err)
	defer reopened.Close()

	res, err := reopened.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Equal(t, []string{"p.md"}, findPaths(t, reopened, "puffin"))
}

func TestHeap_BadgerCheckpointBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Checkpoint.Backend = "badger"
	h := newTestHeap(t, cfg, writingEditor("badger backed note"))

	_, err := h.Add(context.Background(), "b.md")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(h.Root(), config.PrivateDirName, "state"))
	require.NoError(t, err)

	st, err := h.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.UpToDate())
}

func TestCommandEditor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	// "touch -c" accepts the file argument and exits 0.
	require.NoError(t, CommandEditor("touch -c")(context.Background(), path))
	require.Error(t, CommandEditor("false")(context.Background(), path))
}
