package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	assert.True(t, canTransition(Idle, ComputingDiff))
	assert.True(t, canTransition(ComputingDiff, ApplyingBatch))
	assert.True(t, canTransition(ComputingDiff, Failed))
	assert.True(t, canTransition(ApplyingBatch, Committed))
	assert.True(t, canTransition(ApplyingBatch, Failed))

	assert.False(t, canTransition(Idle, ApplyingBatch))
	assert.False(t, canTransition(Committed, Idle))
	assert.False(t, canTransition(Failed, ComputingDiff))

	assert.True(t, Committed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, ApplyingBatch.Terminal())
	assert.Equal(t, "computing_diff", ComputingDiff.String())
	assert.Equal(t, "state(9)", State(9).String())
}
