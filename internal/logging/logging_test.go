package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.UTC)

	l.Info("server_started", map[string]any{"port": "3000"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "server_started", entry["msg"])
	assert.Equal(t, "3000", entry["port"])
	assert.NotEmpty(t, entry["ts"])
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, nil)

	fields := map[string]any{"key": "images/1.png"}
	l.Error("temp_file_cleanup_failed", errors.New("permission denied"), fields)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "permission denied", entry["error"])
	assert.Equal(t, "images/1.png", entry["key"])
	// caller's map is left untouched
	assert.NotContains(t, fields, "error")
}

func TestLogger_OneLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.UTC)

	l.Info("a", nil)
	l.Warn("b", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}
