package migration

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxritter/codepro/pkg/envfile"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/paths"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	fs := filesystem.NewMemory()
	return &Context{
		FS:           fs,
		ProjectDir:   "/project",
		Store:        envfile.NewStore(fs, envfile.MapEnvironment{}),
		ObsoleteKeys: []string{"USE_ASK_CIPHER", "FASTMCP_LOG_LEVEL"},
	}
}

func write(t *testing.T, fs afero.Fs, rel, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/project", filepath.FromSlash(rel)), []byte(content), 0644))
}

func read(t *testing.T, fs afero.Fs, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.Join("/project", filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestRenameEnvFile(t *testing.T) {
	ctx := newTestContext(t)
	write(t, ctx.FS, paths.LegacyEnvFile, "OPENAI_API_KEY=sk-test\n")

	applied, err := Run(ctx)
	require.NoError(t, err)

	assert.Contains(t, applied, "rename-env-file")
	assert.False(t, filesystem.Exists(ctx.FS, "/project/.env"))
	assert.Equal(t, "OPENAI_API_KEY=sk-test\n", read(t, ctx.FS, paths.EnvFile))
}

func TestRenameEnvFileKeepsUserOwnedEnv(t *testing.T) {
	ctx := newTestContext(t)
	write(t, ctx.FS, paths.LegacyEnvFile, "MY_APP_VAR=1\n")
	write(t, ctx.FS, paths.EnvFile, "OPENAI_API_KEY=sk-test\n")

	applied, err := Run(ctx)
	require.NoError(t, err)

	assert.NotContains(t, applied, "rename-env-file")
	assert.Equal(t, "MY_APP_VAR=1\n", read(t, ctx.FS, paths.LegacyEnvFile))
	assert.Equal(t, "OPENAI_API_KEY=sk-test\n", read(t, ctx.FS, paths.EnvFile))
}

func TestPruneObsoleteEnvKeys(t *testing.T) {
	ctx := newTestContext(t)
	write(t, ctx.FS, paths.EnvFile, "OPENAI_API_KEY=sk-test\nUSE_ASK_CIPHER=true\nFASTMCP_LOG_LEVEL=debug\n")

	applied, err := Run(ctx)
	require.NoError(t, err)

	assert.Contains(t, applied, "prune-obsolete-env-keys")
	assert.Equal(t, "OPENAI_API_KEY=sk-test\n", read(t, ctx.FS, paths.EnvFile))
}

func TestDropConsumedSettingsTemplate(t *testing.T) {
	ctx := newTestContext(t)
	write(t, ctx.FS, paths.SettingsTemplateFile, "{}")
	write(t, ctx.FS, paths.SettingsFile, "{}")

	applied, err := Run(ctx)
	require.NoError(t, err)

	assert.Contains(t, applied, "drop-consumed-settings-template")
	assert.False(t, filesystem.Exists(ctx.FS, "/project/.claude/settings.local.template.json"))
	assert.True(t, filesystem.Exists(ctx.FS, "/project/.claude/settings.local.json"))
}

func TestDropConsumedSettingsTemplateKeepsUnconsumed(t *testing.T) {
	ctx := newTestContext(t)
	write(t, ctx.FS, paths.SettingsTemplateFile, "{}")

	applied, err := Run(ctx)
	require.NoError(t, err)

	assert.NotContains(t, applied, "drop-consumed-settings-template")
	assert.True(t, filesystem.Exists(ctx.FS, "/project/.claude/settings.local.template.json"))
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := newTestContext(t)
	write(t, ctx.FS, paths.LegacyEnvFile, "OPENAI_API_KEY=sk-test\nUSE_ASK_CIPHER=true\n")
	write(t, ctx.FS, paths.SettingsTemplateFile, "{}")
	write(t, ctx.FS, paths.SettingsFile, "{}")

	first, err := Run(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Equal(t, "OPENAI_API_KEY=sk-test\n", read(t, ctx.FS, paths.EnvFile))
}

func TestRunOnEmptyProject(t *testing.T) {
	ctx := newTestContext(t)

	applied, err := Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
