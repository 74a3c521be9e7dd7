package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	original := CLILogger
	defer func() { CLILogger = original }()

	t.Run("cli profile", func(t *testing.T) {
		require.NoError(t, Init("debug", ProfileCLI))
		assert.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("structured profile", func(t *testing.T) {
		require.NoError(t, Init("warn", ProfileStructured))
		assert.False(t, CLILogger.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, CLILogger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		assert.Error(t, Init("shout", ProfileCLI))
	})

	t.Run("unknown profile", func(t *testing.T) {
		assert.Error(t, Init("info", "FANCY"))
	})
}

func TestLoggerIsNamed(t *testing.T) {
	original := CLILogger
	defer func() { CLILogger = original }()

	require.NoError(t, Init("info", ProfileCLI))
	assert.NotNil(t, Logger("jobmanager"))
}
