package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns its stdout.
// Global flag variables are reset first so earlier runs don't leak.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	heapDir, verbose, quiet, jsonLogs = "", false, true, false
	searchLimit, searchJSON = 0, false
	statusJSON = false
	logLimit, logJSON = 20, false
	syncWatch, resetSync = false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// setGitIdentity lets nb and the test helpers commit without global git
// configuration.
func setGitIdentity(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_AUTHOR_NAME", "Test User")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test User")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
}

// writeAndCommit writes a note into the heap and commits it with git.
func writeAndCommit(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	runGitCmd(t, root, "add", "--all")
	runGitCmd(t, root, "commit", "-q", "-m", "update "+rel)
}

func runGitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
}

// scriptEditor writes an executable editor script that replaces the file
// it is given with content.
func scriptEditor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "editor.sh")
	script := "#!/bin/sh\ncat > \"$1\" <<'NOTE'\n" + content + "NOTE\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}
