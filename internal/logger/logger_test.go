package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesSinkAndFile(t *testing.T) {
	silent := NewLogger("before init")
	silent.Info("dropped")

	dir := t.TempDir()
	var sink bytes.Buffer
	require.NoError(t, InitLogger(true, dir, &sink))

	l := NewLogger("chat client")
	l.Info("sending ", "hello")
	l.Error("boom")
	silent.Warn("late binding")

	Close()
	l.Info("after close")

	out := sink.String()
	assert.Contains(t, out, "DEBUG (chat client) INFO: sending hello")
	assert.Contains(t, out, "DEBUG (chat client) ERROR: boom")
	assert.Contains(t, out, "DEBUG (before init) WARN: late binding")
	assert.NotContains(t, out, "dropped")
	assert.NotContains(t, out, "after close")

	files, err := filepath.Glob(filepath.Join(dir, "chatprobe_log_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[chat client] INFO: sending hello")
	assert.Contains(t, string(data), "[chat client] ERROR: boom")
}

func TestTypesToString(t *testing.T) {
	assert.Equal(t, "INFO", Info.toString())
	assert.Equal(t, "FATAL", Fatal.toString())
	assert.Equal(t, "UNKNOWN", Types(42).toString())
}
