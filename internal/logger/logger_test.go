package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersTerminalByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Out: &buf, Level: WARN, NoColor: true})
	require.NoError(t, err)

	l.Info("api", "quiet")
	l.Warn("api", "loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "[API       ]")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Options{Out: &buf, Dir: dir, Prefix: "test", Level: ERROR, NoColor: true})
	require.NoError(t, err)

	l.LogPayment("POLL", 7, "status Pending")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	var last LogEntry
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "PAYMENT", last.Category)
	assert.Equal(t, "INFO", last.Level)
	assert.Equal(t, "[POLL] booking 7 - status Pending", last.Message)
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel(""))
}

func TestNilAndNopLoggerAreSafe(t *testing.T) {
	var l *Logger
	l.Info("x", "y")
	l.Close()
	Nop().Error("x", "y")
}
