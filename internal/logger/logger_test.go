package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger("info", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	l.Debug("hidden")
	l.WithField("db_id", 7).Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "db_id=7")
}

func TestNewLogger_DefaultsToWarn(t *testing.T) {
	l, err := newLogger("  ", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("chatty", &bytes.Buffer{})
	assert.Error(t, err)
}
