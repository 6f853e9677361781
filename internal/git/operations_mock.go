package git

import (
	"context"
	"fmt"
)

// DiffKey identifies one Diff call on a MockRevisionSource.
type DiffKey struct {
	From RevisionID
	To   RevisionID
}

// MockRevisionSource is an in-memory revision source for testing.
// Diff results are looked up by the resolved (from, to) pair.
type MockRevisionSource struct {
	HeadRevision RevisionID
	HeadErr      error
	Resolvable   map[RevisionID]bool
	Changes      map[DiffKey][]ChangeRecord
	DiffErr      error

	DiffCalls []DiffKey
}

// NewMockRevisionSource creates a mock whose HEAD is head.
func NewMockRevisionSource(head RevisionID) *MockRevisionSource {
	m := &MockRevisionSource{
		HeadRevision: head,
		Resolvable:   map[RevisionID]bool{},
		Changes:      map[DiffKey][]ChangeRecord{},
	}
	if !head.IsZero() {
		m.Resolvable[head] = true
	}
	return m
}

// Commit moves HEAD to next and registers the changes from the previous
// HEAD (or the empty tree) to next.
func (m *MockRevisionSource) Commit(next RevisionID, changes ...ChangeRecord) {
	m.Changes[DiffKey{From: m.HeadRevision, To: next}] = changes
	m.HeadRevision = next
	m.Resolvable[next] = true
}

func (m *MockRevisionSource) Head(ctx context.Context) (RevisionID, error) {
	if m.HeadErr != nil {
		return "", m.HeadErr
	}
	if m.HeadRevision.IsZero() {
		return "", ErrNoHeadRevision
	}
	return m.HeadRevision, nil
}

func (m *MockRevisionSource) Resolve(ctx context.Context, id RevisionID) (RevisionID, error) {
	if !m.Resolvable[id] {
		return "", fmt.Errorf("%w: %s", ErrUnresolvableRevision, id)
	}
	return id, nil
}

func (m *MockRevisionSource) Diff(ctx context.Context, from, to RevisionID) ([]ChangeRecord, error) {
	if to.IsZero() {
		to = m.HeadRevision
	}
	m.DiffCalls = append(m.DiffCalls, DiffKey{From: from, To: to})
	if m.DiffErr != nil {
		return nil, m.DiffErr
	}
	if from == to {
		return nil, nil
	}
	if changes, ok := m.Changes[DiffKey{From: from, To: to}]; ok {
		return changes, nil
	}
	return nil, fmt.Errorf("mock: no diff registered for %s..%s", from.Short(), to.Short())
}
