package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	l, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	l.Close()

	l, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWithSentry(t *testing.T) {
	l, err := New(Config{Level: "info", SentryDSN: "https://public@sentry.example.com/1", Tags: map[string]string{"chain": "10"}})
	require.NoError(t, err)
	require.NotNil(t, l.sentry)
	l.Close()

	_, err = New(Config{SentryDSN: "not a dsn"})
	assert.Error(t, err)
}
