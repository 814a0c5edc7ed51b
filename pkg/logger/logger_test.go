package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf).With(String("pair", "KO/PEP"))

	log.Warn("position changed",
		Float64("z", -2.5),
		Int64("ticks", 120),
		Duration("took", 1500*time.Millisecond),
		Bool("ready", true),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "position changed", entry["message"])
	assert.Equal(t, "KO/PEP", entry["pair"])
	assert.Equal(t, -2.5, entry["z"])
	assert.Equal(t, 120.0, entry["ticks"])
	assert.Equal(t, 1500.0, entry["took"])
	assert.Equal(t, true, entry["ready"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().With(String("k", "v")).Error("ignored", Error(nil))
	})
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
