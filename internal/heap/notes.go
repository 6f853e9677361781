package heap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvp-joe/nb/internal/config"
	"github.com/mvp-joe/nb/internal/git"
)

var (
	// ErrInvalidNotePath is returned for paths outside the work tree or
	// inside the heap's private or git directories.
	ErrInvalidNotePath = errors.New("invalid note path")

	// ErrNoteExists is returned by Add when the path is already taken.
	ErrNoteExists = errors.New("note already exists")

	// ErrEmptyNote is returned by Add when the editor saved nothing.
	ErrEmptyNote = errors.New("note is empty")
)

// EditorFunc opens the file at path for editing and returns once the
// user is done.
type EditorFunc func(ctx context.Context, path string) error

// CommandEditor runs command (or $EDITOR, then vi) on the file with the
// terminal attached. The command may carry arguments, e.g. "code --wait".
func CommandEditor(command string) EditorFunc {
	return func(ctx context.Context, path string) error {
		cmdline := command
		if cmdline == "" {
			cmdline = os.Getenv("EDITOR")
		}
		if cmdline == "" {
			cmdline = "vi"
		}
		args := strings.Fields(cmdline)

		cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("editor %s failed: %w", args[0], err)
		}
		return nil
	}
}

// notePath validates rel and returns it slash-normalized.
func (h *Heap) notePath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		abs, err := filepath.Abs(rel)
		if err != nil {
			return "", err
		}
		inside, err := filepath.Rel(h.root, abs)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrInvalidNotePath, rel)
		}
		rel = inside
	}

	clean := git.NormalizePath(rel)
	switch {
	case clean == "",
		clean == "..", strings.HasPrefix(clean, "../"),
		clean == config.PrivateDirName, strings.HasPrefix(clean, config.PrivateDirName+"/"),
		clean == ".git", strings.HasPrefix(clean, ".git/"):
		return "", fmt.Errorf("%w: %s", ErrInvalidNotePath, rel)
	}
	return clean, nil
}

// Add creates a note, opens it in the editor, commits it and syncs.
// An empty rel names the note <uuid>.md. Returns the note's path.
func (h *Heap) Add(ctx context.Context, rel string) (string, error) {
	if rel == "" {
		rel = uuid.NewString() + ".md"
	}
	path, err := h.notePath(rel)
	if err != nil {
		return "", err
	}

	full := filepath.Join(h.root, filepath.FromSlash(path))
	if _, err := os.Stat(full); err == nil {
		return "", fmt.Errorf("%w: %s", ErrNoteExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, nil, 0644); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := h.editor(ctx, full); err != nil {
		os.Remove(full)
		return "", err
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		os.Remove(full)
		return "", fmt.Errorf("%w: %s", ErrEmptyNote, path)
	}

	if err := h.commitAndSync(ctx, "add "+path, path); err != nil {
		return "", err
	}
	return path, nil
}

// Edit opens an existing (or new) note in the editor, commits whatever
// changed and syncs.
func (h *Heap) Edit(ctx context.Context, rel string) (string, error) {
	path, err := h.notePath(rel)
	if err != nil {
		return "", err
	}

	full := filepath.Join(h.root, filepath.FromSlash(path))
	_, statErr := os.Stat(full)
	existed := statErr == nil
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := h.editor(ctx, full); err != nil {
		return "", err
	}

	if _, err := os.Stat(full); os.IsNotExist(err) && !existed {
		// A new note the editor never saved.
		return path, nil
	}
	if err := h.commitAndSync(ctx, "edit "+path, path); err != nil {
		return "", err
	}
	return path, nil
}

func (h *Heap) commitAndSync(ctx context.Context, message, path string) error {
	rev, err := h.repo.CommitPaths(ctx, message, path)
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	h.logger.Debug("note committed", zap.String("path", path), zap.String("to", rev.Short()))

	if _, err := h.Sync(ctx); err != nil {
		return err
	}
	return nil
}
