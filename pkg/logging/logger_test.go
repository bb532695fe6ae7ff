package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		logger := New(level)
		assert.NotNil(t, logger, "level %q", level)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", &buf)

	logger.Info("should be dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("should be written")
	assert.NotZero(t, buf.Len())
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).Component("webhook")

	logger.Info("hello", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "webhook", entry["component"])
	assert.Equal(t, "value", entry["key"])
}

func TestDefault(t *testing.T) {
	assert.NotNil(t, Default())
}
