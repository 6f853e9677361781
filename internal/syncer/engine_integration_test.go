package syncer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/nb/internal/checkpoint"
	"github.com/mvp-joe/nb/internal/git"
	"github.com/mvp-joe/nb/internal/index"
)

// Integration tests against a real git repository, file checkpoint and
// on-disk index. These run sequentially (NO t.Parallel()).

func TestEngineIntegration(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := git.Init(ctx, dir, git.Options{})
	require.NoError(t, err)
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "commit.gpgsign", "false")

	private := filepath.Join(dir, ".nb")
	ix, err := index.Open(filepath.Join(private, "index"), index.Options{})
	require.NoError(t, err)
	defer ix.Close()
	store, err := checkpoint.NewFileStore(private)
	require.NoError(t, err)

	engine, err := New(repo, ix, store, os.DirFS(dir), Options{})
	require.NoError(t, err)

	t.Run("empty repository is a no-op", func(t *testing.T) {
		res, err := engine.Sync(ctx)
		require.NoError(t, err)
		assert.True(t, res.NoOp)
	})

	writeFile(t, dir, "a.md", "# Alpha\n\nquokka sighting\n")
	writeFile(t, dir, "sub/b.md", "# Beta\n\nwombat burrow\n")
	first, err := repo.CommitPaths(ctx, "initial", ".")
	require.NoError(t, err)

	t.Run("first sync indexes every note", func(t *testing.T) {
		res, err := engine.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Upserts)
		assert.Equal(t, first, res.To)

		assertPaths(t, ix, "quokka", "a.md")
		assertPaths(t, ix, "wombat", "sub/b.md")

		cp, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, first, cp.Revision)
	})

	t.Run("private directory is never part of the diff", func(t *testing.T) {
		out, err := exec.Command("git", "-C", dir, "status", "--porcelain").Output()
		require.NoError(t, err)
		assert.Empty(t, string(out))
	})

	t.Run("modify and delete", func(t *testing.T) {
		writeFile(t, dir, "a.md", "# Alpha\n\nkangaroo instead\n")
		require.NoError(t, os.Remove(filepath.Join(dir, "sub", "b.md")))
		_, err := repo.CommitPaths(ctx, "edit", ".")
		require.NoError(t, err)

		res, err := engine.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Upserts)
		assert.Equal(t, 1, res.Deletes)

		assertPaths(t, ix, "kangaroo", "a.md")
		assertPaths(t, ix, "quokka")
		assertPaths(t, ix, "wombat")

		count, err := ix.Count()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})

	t.Run("second sync is a no-op", func(t *testing.T) {
		gen := ix.Generation()
		res, err := engine.Sync(ctx)
		require.NoError(t, err)
		assert.True(t, res.NoOp)
		assert.Equal(t, gen, ix.Generation())
	})

	t.Run("rewritten history is unresolvable", func(t *testing.T) {
		require.NoError(t, store.Save(checkpoint.Checkpoint{Revision: "0123456789012345678901234567890123456789"}))
		_, err := engine.Sync(ctx)
		require.ErrorIs(t, err, git.ErrUnresolvableRevision)

		// An explicit reset recovers with a full, idempotent reindex.
		require.NoError(t, store.Reset())
		res, err := engine.Sync(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Upserts)
		count, err := ix.Count()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})
}

func TestEngineIntegration_RenameDetection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := git.Init(ctx, dir, git.Options{DetectRenames: true})
	require.NoError(t, err)
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "commit.gpgsign", "false")

	ix, err := index.OpenMem(index.Options{})
	require.NoError(t, err)
	defer ix.Close()
	store, err := checkpoint.NewFileStore(filepath.Join(dir, ".nb"))
	require.NoError(t, err)
	engine, err := New(repo, ix, store, os.DirFS(dir), Options{})
	require.NoError(t, err)

	body := "a fairly long note body that stays the same across the move\n"
	writeFile(t, dir, "old.md", body+body+body)
	_, err = repo.CommitPaths(ctx, "initial", ".")
	require.NoError(t, err)
	_, err = engine.Sync(ctx)
	require.NoError(t, err)
	before, err := store.Load()
	require.NoError(t, err)

	runGit(t, dir, "mv", "old.md", "new.md")
	runGit(t, dir, "commit", "-q", "-m", "move")

	_, err = engine.Sync(ctx)
	require.ErrorIs(t, err, ErrRenameNotSupported)

	after, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func assertPaths(t *testing.T, ix *index.Index, query string, want ...string) {
	t.Helper()
	docs, err := ix.Query(query)
	require.NoError(t, err)
	got := make([]string, 0, len(docs))
	for _, d := range docs {
		got = append(got, d.Path)
	}
	if len(want) == 0 {
		assert.Empty(t, got, "query %q", query)
		return
	}
	assert.ElementsMatch(t, want, got, "query %q", query)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
}
