// Package watcher reports new commits in a git repository.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/logging"
)

// DefaultDebounce is the quiet period after the last ref change before the
// callback fires.
const DefaultDebounce = 250 * time.Millisecond

// GitWatcher fires a callback when HEAD, a branch ref or packed-refs
// changes, i.e. after a commit, checkout, reset or pull.
type GitWatcher interface {
	// Start begins watching. callback receives the branch HEAD points at
	// ("detached" for a detached HEAD) once changes have settled.
	Start(ctx context.Context, callback func(branch string)) error

	// Stop stops the watcher and waits for a running callback to return.
	Stop() error
}

// Options configures a GitWatcher.
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// gitWatcher is the concrete implementation of GitWatcher.
type gitWatcher struct {
	gitDir   string
	headPath string
	refsDir  string
	debounce time.Duration
	logger   *zap.Logger

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	// started is set once the event loop runs; only then does doneCh close.
	started atomic.Bool
}

// NewGitWatcher creates a new GitWatcher for the given git directory.
// gitDir should be the path to the .git directory.
// Returns error if .git/HEAD doesn't exist or cannot be accessed.
func NewGitWatcher(gitDir string, opts Options) (GitWatcher, error) {
	headPath := filepath.Join(gitDir, "HEAD")
	if _, err := os.Stat(headPath); err != nil {
		return nil, fmt.Errorf("cannot access .git/HEAD: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	gw := &gitWatcher{
		gitDir:   gitDir,
		headPath: headPath,
		refsDir:  filepath.Join(gitDir, "refs", "heads"),
		debounce: opts.Debounce,
		logger:   opts.Logger,
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if gw.debounce <= 0 {
		gw.debounce = DefaultDebounce
	}
	gw.logger = logging.OrNop(gw.logger)
	return gw, nil
}

// Start begins monitoring the repository's refs.
func (gw *gitWatcher) Start(ctx context.Context, callback func(branch string)) error {
	// Watch the .git directory instead of the HEAD file directly
	// This ensures we catch the file even if it's deleted and recreated
	if err := gw.watcher.Add(gw.gitDir); err != nil {
		return fmt.Errorf("failed to watch .git directory: %w", err)
	}
	// Branch names with slashes live in subdirectories of refs/heads.
	if err := gw.addRefDirs(gw.refsDir); err != nil {
		return err
	}

	gw.started.Store(true)
	go gw.watch(ctx, callback)
	return nil
}

func (gw *gitWatcher) addRefDirs(root string) error {
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return gw.watcher.Add(path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to watch refs: %w", err)
	}
	return nil
}

// Stop stops the watcher and cleans up resources.
func (gw *gitWatcher) Stop() error {
	var err error
	gw.stopOnce.Do(func() {
		close(gw.stopCh)
		if gw.started.Load() {
			<-gw.doneCh // Wait for goroutine to finish
		}
		err = gw.watcher.Close()
	})
	return err
}

// watch is the main event loop. Relevant events restart the debounce
// timer; the callback fires when it expires.
func (gw *gitWatcher) watch(ctx context.Context, callback func(branch string)) {
	defer close(gw.doneCh)

	timer := time.NewTimer(gw.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-gw.stopCh:
			return

		case event, ok := <-gw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 && gw.isRefPath(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := gw.addRefDirs(event.Name); err != nil {
						gw.logger.Warn("failed to watch new ref directory", zap.String("path", event.Name), zap.Error(err))
					}
					continue
				}
			}
			if !gw.relevant(event) {
				continue
			}
			timer.Reset(gw.debounce)

		case <-timer.C:
			branch, err := readBranch(gw.headPath)
			if err != nil {
				gw.logger.Warn("failed to read .git/HEAD", zap.Error(err))
				continue
			}

			// Fire callback with panic recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						gw.logger.Error("git watcher callback panic", zap.Any("panic", r))
					}
				}()
				callback(branch)
			}()

		case err, ok := <-gw.watcher.Errors:
			if !ok {
				return
			}
			gw.logger.Warn("git watcher error", zap.Error(err))
		}
	}
}

func (gw *gitWatcher) isRefPath(name string) bool {
	return name == gw.refsDir || strings.HasPrefix(name, gw.refsDir+string(filepath.Separator))
}

// relevant reports whether event can move HEAD to another commit.
// Lock files are git's scratch copies and are renamed into place.
func (gw *gitWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	if strings.HasSuffix(event.Name, ".lock") {
		return false
	}
	if event.Name == gw.headPath || event.Name == filepath.Join(gw.gitDir, "packed-refs") {
		return true
	}
	return gw.isRefPath(event.Name)
}

// readBranch reads and parses the current branch from .git/HEAD.
func readBranch(headPath string) (string, error) {
	content, err := os.ReadFile(headPath)
	if err != nil {
		return "", err
	}
	return parseBranch(content), nil
}

// parseBranch parses branch name from HEAD file content.
// Returns branch name, or "detached" for detached HEAD.
func parseBranch(content []byte) string {
	line := strings.TrimSpace(string(content))

	if strings.HasPrefix(line, "ref: refs/heads/") {
		return strings.TrimSpace(strings.TrimPrefix(line, "ref: refs/heads/"))
	}

	// A bare sha1 or sha256 object id is a detached HEAD.
	if (len(line) == 40 || len(line) == 64) && isHexString(line) {
		return "detached"
	}

	return line
}

// isHexString checks if a string contains only hexadecimal characters.
func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
