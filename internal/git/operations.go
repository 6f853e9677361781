package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// privateDirRule keeps the heap's private directory out of version control.
const privateDirRule = "/.nb/"

// Options tunes how a Repo reports changes.
type Options struct {
	// DetectRenames turns on git's rename detection. When off (the default)
	// a rename is reported as a Deleted and an Added record.
	DetectRenames bool
}

// Repo is the revision source for a notes corpus, backed by the git CLI.
type Repo struct {
	root string
	opts Options
}

// Init creates a new git repository at dir and excludes the private
// directory through the repository's info/exclude file.
func Init(ctx context.Context, dir string, opts Options) (*Repo, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	r := &Repo{root: abs, opts: opts}
	if _, err := r.run(ctx, "init", "--quiet"); err != nil {
		return nil, err
	}
	if err := r.AddIgnoreRule(ctx, privateDirRule); err != nil {
		return nil, err
	}
	return r, nil
}

// Open returns a Repo for an existing work tree rooted at dir.
func Open(ctx context.Context, dir string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	r := &Repo{root: abs, opts: opts}
	out, err := r.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
	}

	top, err := filepath.EvalSymlinks(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work tree root: %w", err)
	}
	want, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", abs, err)
	}
	if top != want {
		return nil, fmt.Errorf("%w: %s is inside %s", ErrNotRepository, abs, top)
	}
	return r, nil
}

// Root returns the absolute path of the work tree.
func (r *Repo) Root() string {
	return r.root
}

// Head returns the commit HEAD points at, or ErrNoHeadRevision when the
// repository has no commits.
func (r *Repo) Head(ctx context.Context) (RevisionID, error) {
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD^{commit}")
	if err != nil {
		if exitCode(err) == 1 {
			return "", ErrNoHeadRevision
		}
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return RevisionID(strings.TrimSpace(string(out))), nil
}

// Resolve returns the full commit id for id, or ErrUnresolvableRevision.
func (r *Repo) Resolve(ctx context.Context, id RevisionID) (RevisionID, error) {
	if id.IsZero() {
		return "", fmt.Errorf("%w: empty revision", ErrUnresolvableRevision)
	}
	out, err := r.run(ctx, "rev-parse", "--verify", "--quiet", string(id)+"^{commit}")
	if err != nil {
		if exitCode(err) == 1 {
			return "", fmt.Errorf("%w: %s", ErrUnresolvableRevision, id)
		}
		return "", fmt.Errorf("failed to resolve %s: %w", id, err)
	}
	return RevisionID(strings.TrimSpace(string(out))), nil
}

// Diff lists the paths that changed between from and to. An empty from
// diffs against the empty tree, so every tracked file is reported Added.
// An empty to means HEAD. Record order is unspecified.
func (r *Repo) Diff(ctx context.Context, from, to RevisionID) ([]ChangeRecord, error) {
	var fromRef string
	if from.IsZero() {
		tree, err := r.emptyTree(ctx)
		if err != nil {
			return nil, err
		}
		fromRef = tree
	} else {
		resolved, err := r.Resolve(ctx, from)
		if err != nil {
			return nil, err
		}
		fromRef = string(resolved)
	}

	var toRef string
	if to.IsZero() {
		head, err := r.Head(ctx)
		if err != nil {
			return nil, err
		}
		toRef = string(head)
	} else {
		resolved, err := r.Resolve(ctx, to)
		if err != nil {
			return nil, err
		}
		toRef = string(resolved)
	}

	args := []string{"diff-tree", "-r", "-z", "--name-status", "--no-commit-id"}
	if r.opts.DetectRenames {
		args = append(args, "-M")
	} else {
		args = append(args, "--no-renames")
	}
	args = append(args, fromRef, toRef)

	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", RevisionID(fromRef).Short(), RevisionID(toRef).Short(), err)
	}

	records, err := parseNameStatus(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff %s..%s: %w", RevisionID(fromRef).Short(), RevisionID(toRef).Short(), err)
	}
	return records, nil
}

// CommitPaths stages paths (including deletions) and commits them.
// Returns the new HEAD, or the current HEAD if nothing changed.
func (r *Repo) CommitPaths(ctx context.Context, message string, paths ...string) (RevisionID, error) {
	if message == "" {
		return "", fmt.Errorf("commit message is required")
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("at least one path is required")
	}

	addArgs := append([]string{"add", "--all", "--"}, paths...)
	if _, err := r.run(ctx, addArgs...); err != nil {
		return "", err
	}

	// diff --cached --quiet exits 1 when the index differs from HEAD.
	diffArgs := append([]string{"diff", "--cached", "--quiet", "--"}, paths...)
	if _, err := r.run(ctx, diffArgs...); err == nil {
		head, headErr := r.Head(ctx)
		if headErr != nil && !errors.Is(headErr, ErrNoHeadRevision) {
			return "", headErr
		}
		return head, nil
	} else if exitCode(err) != 1 {
		// An unborn HEAD makes diff --cached fail; fall through and commit.
		if _, headErr := r.Head(ctx); !errors.Is(headErr, ErrNoHeadRevision) {
			return "", err
		}
	}

	commitArgs := append([]string{"commit", "--quiet", "-m", message, "--"}, paths...)
	if _, err := r.run(ctx, commitArgs...); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// AddIgnoreRule appends rule to the repository's info/exclude file if it
// is not already present.
func (r *Repo) AddIgnoreRule(ctx context.Context, rule string) error {
	out, err := r.run(ctx, "rev-parse", "--git-path", "info/exclude")
	if err != nil {
		return err
	}
	excludePath := strings.TrimSpace(string(out))
	if !filepath.IsAbs(excludePath) {
		excludePath = filepath.Join(r.root, excludePath)
	}

	existing, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", excludePath, err)
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == rule {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(excludePath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(excludePath), err)
	}
	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", excludePath, err)
	}
	defer f.Close()

	prefix := ""
	if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + rule + "\n"); err != nil {
		return fmt.Errorf("failed to write ignore rule: %w", err)
	}
	return nil
}

// CurrentBranch returns the checked out branch name.
// For a detached HEAD it returns "detached-{short-hash}", and "unknown"
// if git cannot tell.
func (r *Repo) CurrentBranch(ctx context.Context) string {
	out, err := r.run(ctx, "branch", "--show-current")
	if err == nil && len(strings.TrimSpace(string(out))) > 0 {
		return strings.TrimSpace(string(out))
	}

	out, err = r.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "unknown"
	}
	return "detached-" + strings.TrimSpace(string(out))
}

// emptyTree returns the id of the empty tree for this repository's hash
// algorithm, writing the object so diff-tree can always read it.
func (r *Repo) emptyTree(ctx context.Context) (string, error) {
	out, err := r.runInput(ctx, strings.NewReader(""), "hash-object", "-t", "tree", "-w", "--stdin")
	if err != nil {
		return "", fmt.Errorf("failed to compute empty tree: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (r *Repo) run(ctx context.Context, args ...string) ([]byte, error) {
	return r.runInput(ctx, nil, args...)
}

func (r *Repo) runInput(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdin = stdin
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return out, &CommandError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}
