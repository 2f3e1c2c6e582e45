package logging

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

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := NewLogger(Options{Env: "test", Dir: dir, Console: &console})
	require.NoError(t, err)

	logger.Debug("tracing step")
	logger.Info("shift created")
	_ = logger.Sync()

	assert.Contains(t, console.String(), "shift created")
	assert.NotContains(t, console.String(), "tracing step")

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "test_"))

	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "tracing step", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "test", entry["env"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLogger_Verbose(t *testing.T) {
	var console bytes.Buffer

	logger, err := NewLogger(Options{Env: "dev", Dir: t.TempDir(), Console: &console, Verbose: true})
	require.NoError(t, err)

	logger.Debug("tracing step")
	_ = logger.Sync()

	assert.Contains(t, console.String(), "tracing step")
}
