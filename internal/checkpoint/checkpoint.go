// Package checkpoint persists the last revision the index was synced to.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mvp-joe/nb/internal/git"
	"go.uber.org/zap"
)

// Backend names accepted by OpenBackend.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// ErrUnknownBackend is returned by OpenBackend for an unsupported name.
var ErrUnknownBackend = errors.New("unknown checkpoint backend")

// ErrCorrupt is returned by Load when the stored checkpoint cannot be decoded.
var ErrCorrupt = errors.New("corrupt checkpoint")

// Checkpoint records the last successfully indexed revision.
// A zero Revision means the heap has never been synced.
type Checkpoint struct {
	Revision   git.RevisionID
	Generation uint64
	UpdatedAt  time.Time
}

// IsZero reports whether no revision has been indexed.
func (c Checkpoint) IsZero() bool {
	return c.Revision.IsZero()
}

// Store reads and writes the single checkpoint of a heap.
type Store interface {
	// Load returns the stored checkpoint, or the zero Checkpoint when none
	// has been written.
	Load() (Checkpoint, error)
	// Save durably replaces the stored checkpoint.
	Save(Checkpoint) error
	// Reset removes the stored checkpoint.
	Reset() error
	Close() error
}

// OpenBackend opens the named store inside the heap's private directory.
// An empty name selects the file backend.
func OpenBackend(backend, privateDir string, logger *zap.Logger) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(privateDir)
	case BackendBadger:
		return NewBadgerStore(filepath.Join(privateDir, DirName), logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// record is the on-disk shape: {"commit": "<id>"|null, "generation": N, "updated_at": "..."}.
type record struct {
	Commit     *string   `json:"commit"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func encode(c Checkpoint) ([]byte, error) {
	rec := record{Generation: c.Generation, UpdatedAt: c.UpdatedAt.UTC()}
	if !c.Revision.IsZero() {
		commit := string(c.Revision)
		rec.Commit = &commit
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Checkpoint, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c := Checkpoint{Generation: rec.Generation, UpdatedAt: rec.UpdatedAt}
	if rec.Commit != nil {
		c.Revision = git.RevisionID(*rec.Commit)
	}
	return c, nil
}
