package envfile

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxritter/codepro/pkg/filesystem"
)

func newTestStore(env MapEnvironment) (*Store, afero.Fs) {
	fs := filesystem.NewMemory()
	if env == nil {
		env = MapEnvironment{}
	}
	return NewStore(fs, env), fs
}

func writeEnvFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0600))
}

func readEnvFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestExists(t *testing.T) {
	tests := []struct {
		name     string
		env      MapEnvironment
		content  string
		key      string
		expected bool
	}{
		{
			name:     "key_in_file",
			content:  "OPENAI_API_KEY=sk-123\n",
			key:      "OPENAI_API_KEY",
			expected: true,
		},
		{
			name:     "key_missing",
			content:  "OTHER=1\n",
			key:      "OPENAI_API_KEY",
			expected: false,
		},
		{
			name:     "blank_value_counts_as_missing",
			content:  "OPENAI_API_KEY=\n",
			key:      "OPENAI_API_KEY",
			expected: false,
		},
		{
			name:     "whitespace_value_counts_as_missing",
			content:  "OPENAI_API_KEY=   \n",
			key:      "OPENAI_API_KEY",
			expected: false,
		},
		{
			name:     "env_var_wins_over_missing_file_entry",
			env:      MapEnvironment{"OPENAI_API_KEY": "sk-env"},
			content:  "OTHER=1\n",
			key:      "OPENAI_API_KEY",
			expected: true,
		},
		{
			name:     "env_var_wins_over_blank_file_entry",
			env:      MapEnvironment{"OPENAI_API_KEY": "sk-env"},
			content:  "OPENAI_API_KEY=\n",
			key:      "OPENAI_API_KEY",
			expected: true,
		},
		{
			name:     "empty_env_var_does_not_count",
			env:      MapEnvironment{"OPENAI_API_KEY": ""},
			content:  "",
			key:      "OPENAI_API_KEY",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fs := newTestStore(tt.env)
			if tt.content != "" {
				writeEnvFile(t, fs, ".env.codepro", tt.content)
			}
			assert.Equal(t, tt.expected, store.Exists(tt.key, ".env.codepro"))
		})
	}
}

func TestExistsMissingFile(t *testing.T) {
	store, _ := newTestStore(nil)
	assert.False(t, store.Exists("ANY", "does-not-exist"))
}

func TestUpsert(t *testing.T) {
	t.Run("creates_file", func(t *testing.T) {
		store, fs := newTestStore(nil)

		require.NoError(t, store.Upsert("KEY", "value", ".env.codepro"))
		assert.Equal(t, "KEY=value\n", readEnvFile(t, fs, ".env.codepro"))
	})

	t.Run("idempotent_rerun", func(t *testing.T) {
		store, fs := newTestStore(nil)

		require.NoError(t, store.Upsert("KEY", "value", ".env.codepro"))
		require.NoError(t, store.Upsert("KEY", "value", ".env.codepro"))

		assert.Equal(t, "KEY=value\n", readEnvFile(t, fs, ".env.codepro"))
	})

	t.Run("existing_value_is_kept", func(t *testing.T) {
		store, fs := newTestStore(nil)
		writeEnvFile(t, fs, ".env.codepro", "KEY=original\n")

		require.NoError(t, store.Upsert("KEY", "updated", ".env.codepro"))
		assert.Equal(t, "KEY=original\n", readEnvFile(t, fs, ".env.codepro"))
	})

	t.Run("blank_value_is_replaced", func(t *testing.T) {
		store, fs := newTestStore(nil)
		writeEnvFile(t, fs, ".env.codepro", "KEY=\nOTHER=1\n")

		require.NoError(t, store.Upsert("KEY", "filled", ".env.codepro"))
		assert.Equal(t, "OTHER=1\nKEY=filled\n", readEnvFile(t, fs, ".env.codepro"))
	})

	t.Run("preserves_line_order", func(t *testing.T) {
		store, fs := newTestStore(nil)
		writeEnvFile(t, fs, ".env.codepro", "A=1\nB=2\n")

		require.NoError(t, store.Upsert("C", "3", ".env.codepro"))
		assert.Equal(t, "A=1\nB=2\nC=3\n", readEnvFile(t, fs, ".env.codepro"))
	})
}

func TestSetOverwrite(t *testing.T) {
	store, fs := newTestStore(nil)
	writeEnvFile(t, fs, ".env.codepro", "A=1\nURL=old\nB=2\n")

	require.NoError(t, store.SetOverwrite("URL", "new", ".env.codepro"))

	assert.Equal(t, "A=1\nB=2\nURL=new\n", readEnvFile(t, fs, ".env.codepro"))
}

func TestRemoveKey(t *testing.T) {
	t.Run("removes_existing", func(t *testing.T) {
		store, fs := newTestStore(nil)
		writeEnvFile(t, fs, ".env.codepro", "A=1\nB=2\n")

		removed, err := store.RemoveKey("B", ".env.codepro")
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, "A=1\n", readEnvFile(t, fs, ".env.codepro"))
	})

	t.Run("missing_key_leaves_file_untouched", func(t *testing.T) {
		store, fs := newTestStore(nil)
		writeEnvFile(t, fs, ".env.codepro", "A=1\nB=2\n")

		removed, err := store.RemoveKey("C", ".env.codepro")
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Equal(t, "A=1\nB=2\n", readEnvFile(t, fs, ".env.codepro"))
	})

	t.Run("removing_last_key_writes_empty_file", func(t *testing.T) {
		store, fs := newTestStore(nil)
		writeEnvFile(t, fs, ".env.codepro", "A=1\n")

		removed, err := store.RemoveKey("A", ".env.codepro")
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, "", readEnvFile(t, fs, ".env.codepro"))
	})
}

func TestPruneKeys(t *testing.T) {
	store, fs := newTestStore(nil)
	writeEnvFile(t, fs, ".env.codepro", "A=1\nB=2\nC=3\n")

	removed, err := store.PruneKeys([]string{"B", "X", "C"}, ".env.codepro")
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, removed)
	assert.Equal(t, "A=1\n", readEnvFile(t, fs, ".env.codepro"))
}

func TestValue(t *testing.T) {
	store, fs := newTestStore(MapEnvironment{"A": "from-env"})
	writeEnvFile(t, fs, ".env.codepro", "A=from-file\nB= spaced \n")

	// Value never consults the process environment
	assert.Equal(t, "from-file", store.Value("A", ".env.codepro"))
	assert.Equal(t, "spaced", store.Value("B", ".env.codepro"))
	assert.Equal(t, "", store.Value("C", ".env.codepro"))
}
