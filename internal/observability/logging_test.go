package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-portal/internal/config"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLoggerStampsServiceIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	logger, err := NewLogger(
		config.LoggerConfig{Level: "debug", Output: path},
		config.AppConfig{Name: "grievance-portal", Version: "1.4.0", Env: "production"},
	)
	require.NoError(t, err)

	logger.Debug("grievance submitted")
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "grievance submitted", entries[0]["message"])
	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "grievance-portal", entries[0]["service"])
	assert.Equal(t, "1.4.0", entries[0]["version"])
	assert.Equal(t, "production", entries[0]["env"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.log")
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty", Output: path}, config.AppConfig{Name: "grievance-portal-cli"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.NotContains(t, entries[0], "version")
}
