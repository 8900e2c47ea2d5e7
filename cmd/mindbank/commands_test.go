package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/mindbank/internal/dictionary/rapidapi"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/testutil"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		configFile = ""
	})

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestDictionaryLookupCommand(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := testutil.SetupTestConfig(t, tmpDir)
	testutil.CacheDictionaryEntry(t, filepath.Join(tmpDir, "dictionaries"), rapidapi.Response{
		Word: "ephemeral",
		Results: []rapidapi.Result{
			{PartOfSpeech: "adjective", Definition: "lasting a very short time"},
		},
	})

	tests := []struct {
		name   string
		args   []string
		assert func(t *testing.T, out string)
	}{
		{
			name: "text output",
			args: []string{"dictionary", "lookup", "Ephemeral", "--config", cfgPath},
			assert: func(t *testing.T, out string) {
				assert.Contains(t, out, "ephemeral\n")
				assert.Contains(t, out, "1. [adjective] lasting a very short time")
			},
		},
		{
			name: "json output",
			args: []string{"dictionary", "lookup", "ephemeral", "--output", "json", "--config", cfgPath},
			assert: func(t *testing.T, out string) {
				var got rapidapi.Response
				require.NoError(t, json.Unmarshal([]byte(out), &got))
				assert.Equal(t, "ephemeral", got.Word)
				require.Len(t, got.Results, 1)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, tt.args...)
			require.NoError(t, err)
			tt.assert(t, out)
		})
	}
}

func TestDictionaryLookupCommand_NotCachedWithoutAPIKey(t *testing.T) {
	t.Setenv("RAPID_API_HOST", "")
	t.Setenv("RAPID_API_KEY", "")
	cfgPath := testutil.SetupTestConfig(t, t.TempDir())

	_, err := executeCommand(t, "dictionary", "lookup", "serendipity", "--config", cfgPath)
	assert.Error(t, err)
}

func TestImportCommand_MemoryStorage(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := testutil.SetupTestConfig(t, tmpDir)
	backup := testutil.WriteBackup(t, tmpDir, item.Item{ID: "w1", Type: item.TypeWord, Text: "serendipity"})

	_, err := executeCommand(t, "import", backup, "--user", "u1", "--config", cfgPath)
	assert.ErrorIs(t, err, errMemoryStorage)
}

func TestExportCommand_RequiresUser(t *testing.T) {
	cfgPath := testutil.SetupTestConfig(t, t.TempDir())

	_, err := executeCommand(t, "export", "yaml", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestClassifyCommand_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfgPath := testutil.SetupTestConfig(t, t.TempDir())

	_, err := executeCommand(t, "classify", "ephemeral", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
