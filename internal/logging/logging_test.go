package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("WARN", "console")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_Errors(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.EqualError(t, err, `unknown log format "xml"`)
}

func TestConfigFor_Auto(t *testing.T) {
	cfg, err := configFor("auto", true)
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Encoding)

	cfg, err = configFor("auto", false)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Encoding)
}
