package syncer

import (
	"errors"
	"sync"

	"github.com/mvp-joe/nb/internal/checkpoint"
	"github.com/mvp-joe/nb/internal/index"
)

// recordingIndex wraps a real in-memory index, recording each batch and
// optionally failing commit or reload.
type recordingIndex struct {
	*index.Index

	batches   [][]index.Operation
	reloads   int
	commitErr error
	reloadErr error
}

func (r *recordingIndex) CommitBatch(ops []index.Operation) (uint64, error) {
	if r.commitErr != nil {
		return 0, r.commitErr
	}
	r.batches = append(r.batches, ops)
	return r.Index.CommitBatch(ops)
}

func (r *recordingIndex) Reload() error {
	if r.reloadErr != nil {
		return r.reloadErr
	}
	r.reloads++
	return r.Index.Reload()
}

func (r *recordingIndex) opCount() int {
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

// memStore is an in-memory checkpoint store with fault injection.
type memStore struct {
	mu      sync.Mutex
	cp      checkpoint.Checkpoint
	saves   int
	loadErr error
	saveErr error
}

var _ checkpoint.Store = (*memStore)(nil)

func (m *memStore) Load() (checkpoint.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return checkpoint.Checkpoint{}, m.loadErr
	}
	return m.cp, nil
}

func (m *memStore) Save(c checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cp = c
	m.saves++
	return nil
}

func (m *memStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp = checkpoint.Checkpoint{}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) current() checkpoint.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp
}

// countingProgress records progress callbacks.
type countingProgress struct {
	diffs     []int
	applied   []string
	committed []uint64
}

func (c *countingProgress) OnDiffComputed(changes int)  { c.diffs = append(c.diffs, changes) }
func (c *countingProgress) OnChangeApplied(path string) { c.applied = append(c.applied, path) }
func (c *countingProgress) OnCommitted(generation uint64) {
	c.committed = append(c.committed, generation)
}

var errInjected = errors.New("injected failure")
