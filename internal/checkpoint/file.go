package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the checkpoint file inside the heap's private directory.
const FileName = "checkpoint.json"

// FileStore keeps the checkpoint in a JSON file, replaced atomically on
// every save (temp file, fsync, rename, fsync of the directory).
type FileStore struct {
	dir  string
	path string
}

// NewFileStore returns a store writing dir/checkpoint.json.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir, path: filepath.Join(dir, FileName)}, nil
}

// Path returns the checkpoint file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return decode(data)
}

func (s *FileStore) Save(c Checkpoint) error {
	data, err := encode(c)
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return syncDir(s.dir)
}

func (s *FileStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return syncDir(s.dir)
}

func (s *FileStore) Close() error {
	return nil
}

// syncDir makes a rename or removal in dir durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint directory: %w", err)
	}
	return nil
}
