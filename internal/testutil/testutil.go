// Package testutil provides shared test helpers for creating config files and data fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/mindbank/internal/datasync"
	"github.com/at-ishikawa/mindbank/internal/dictionary/rapidapi"
	"github.com/at-ishikawa/mindbank/internal/item"
)

// SetupTestConfig creates a minimal config file using the memory storage and
// the directories it points at. Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string) string {
	t.Helper()

	dirs := []string{"dictionaries", "exports"}
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, d), 0755))
	}

	configContent := fmt.Sprintf(`storage:
  driver: memory
dictionaries:
  rapidapi:
    cache_directory: %s
outputs:
  export_directory: %s
`,
		filepath.Join(tmpDir, "dictionaries"),
		filepath.Join(tmpDir, "exports"),
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// SetupTestConfigWithAPIKey creates a config file with a fake OpenAI API key for tests
// that require API key validation to pass.
func SetupTestConfigWithAPIKey(t *testing.T, tmpDir string) string {
	t.Helper()
	cfgPath := SetupTestConfig(t, tmpDir)

	content, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	content = append(content, []byte("openai:\n  api_key: fake-key-for-testing\n  model: gpt-4o-mini\n")...)
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))
	return cfgPath
}

// CacheDictionaryEntry writes a dictionary response where the file cache
// looks it up, so lookups never reach the API.
func CacheDictionaryEntry(t *testing.T, cacheDir string, response rapidapi.Response) {
	t.Helper()

	contents, err := json.Marshal(response)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(cacheDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, response.Word+".json"), contents, 0644))
}

// WriteBackup writes items as a YAML backup file and returns its path.
func WriteBackup(t *testing.T, dir string, items ...item.Item) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, datasync.WriteYAML(&buf, &datasync.Backup{
		Version:    datasync.BackupVersion,
		ExportedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Items:      items,
	}))
	path := filepath.Join(dir, "backup.yml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}
