package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid level", func(t *testing.T) {
		t.Parallel()
		logger, err := New("warn")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		t.Parallel()
		_, err := New("chatty")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chatty")
	})
}

func TestNewConsole(t *testing.T) {
	t.Parallel()

	logger, err := NewConsole("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, OrNop(nil))
	logger, err := New("info")
	require.NoError(t, err)
	assert.Same(t, logger, OrNop(logger))
}
