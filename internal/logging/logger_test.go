package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSONLinesAtLevel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closer, err := New(dir, "info")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("request finished", zap.String("path", "/api/account/Me"), zap.Int("status", 200))
	require.NoError(t, closer())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "request finished", entry["msg"])
	require.Equal(t, "/api/account/Me", entry["path"])
	require.Equal(t, "info", entry["level"])
	require.Contains(t, entry, "ts")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(t.TempDir(), "loud")
	require.Error(t, err)
}
