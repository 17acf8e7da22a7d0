package install

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxritter/codepro/pkg/config"
	"github.com/maxritter/codepro/pkg/envfile"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/source"
	"github.com/maxritter/codepro/pkg/ui"
)

const testRulesConfig = `commands:
  implement:
    rules:
      standard:
        - core/style.md
`

const testSettingsTemplate = `{
  "permissions": {
    "allow": ["Read({{PROJECT_DIR}}/**)"]
  }
}`

// newTestRun seeds a repository mirror on an in-memory filesystem and
// returns a run context installing from it into /project
func newTestRun(t *testing.T) *Context {
	t.Helper()
	fs := filesystem.NewMemory()

	mirror := map[string]string{
		"/mirror/.claude/rules/config.yaml":                 testRulesConfig,
		"/mirror/.claude/rules/standard/core/style.md":      "# Style\n",
		"/mirror/.claude/hooks/check.sh":                    "#!/bin/bash\n",
		"/mirror/.claude/settings.local.template.json":      testSettingsTemplate,
		"/mirror/.mcp.json":                                 `{"mcpServers": {"exa": {"command": "npx"}}}`,
		"/mirror/.mcp-funnel.json":                          `{"servers": []}`,
		"/mirror/.claude/scripts/milvus/docker-compose.yml": "services:\n  standalone:\n    image: milvusdb/milvus\n",
	}
	for path, content := range mirror {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}

	settings := &config.Settings{
		Python: config.Python{
			Permissions: []string{"Bash(ruff:*)"},
			HookMarker:  "file_checker_python",
		},
	}

	return &Context{
		ProjectDir: "/project",
		Options:    Options{NonInteractive: true, InstallPython: true},
		Settings:   settings,
		FS:         fs,
		Source:     source.New(source.Config{LocalMode: true, LocalRepoDir: "/mirror"}, fs),
		Env:        envfile.MapEnvironment{},
		Console:    ui.NewTestConsole(&bytes.Buffer{}, nil),
	}
}

func readProjectFile(t *testing.T, run *Context, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(run.FS, "/project/"+rel)
	require.NoError(t, err)
	return string(data)
}

func TestFilesStepInstallsManagedTree(t *testing.T) {
	run := newTestRun(t)

	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))

	assert.Equal(t, "# Style\n", readProjectFile(t, run, ".claude/rules/standard/core/style.md"))
	assert.Equal(t, testRulesConfig, readProjectFile(t, run, ".claude/rules/config.yaml"))
	for _, category := range []string{"core", "extended", "workflow"} {
		assert.True(t, filesystem.Exists(run.FS, "/project/.claude/rules/custom/"+category+"/.gitkeep"))
	}
}

func TestFilesStepPreservesCustomRules(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, afero.WriteFile(run.FS, "/project/.claude/rules/custom/core/mine.md", []byte("# Mine\n"), 0644))

	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))

	assert.Equal(t, "# Mine\n", readProjectFile(t, run, ".claude/rules/custom/core/mine.md"))
	assert.False(t, filesystem.Exists(run.FS, "/project/.claude/rules/custom/core/.gitkeep"))
}

func TestFilesStepRemovesStaleStandardRules(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, afero.WriteFile(run.FS, "/project/.claude/rules/standard/core/removed-upstream.md", []byte("old"), 0644))

	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))

	assert.False(t, filesystem.Exists(run.FS, "/project/.claude/rules/standard/core/removed-upstream.md"))
}

func TestFilesStepMergesRulesConfigCustomRules(t *testing.T) {
	run := newTestRun(t)
	existing := "commands:\n  implement:\n    rules:\n      standard:\n        - old.md\n      custom:\n        - custom/core/mine.md\n"
	require.NoError(t, afero.WriteFile(run.FS, "/project/.claude/rules/config.yaml", []byte(existing), 0644))

	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))

	merged := readProjectFile(t, run, ".claude/rules/config.yaml")
	assert.Contains(t, merged, "core/style.md")
	assert.Contains(t, merged, "custom/core/mine.md")
	assert.NotContains(t, merged, "old.md")
}

func TestConfigsStepGeneratesSettings(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))

	require.NoError(t, (&configsStep{}).Apply(context.Background(), run))

	settings := readProjectFile(t, run, ".claude/settings.local.json")
	assert.Contains(t, settings, "Read(/project/**)")
	assert.NotContains(t, settings, "{{PROJECT_DIR}}")
	// Consumed after materialization
	assert.False(t, filesystem.Exists(run.FS, "/project/.claude/settings.local.template.json"))

	assert.Equal(t, "22\n", readProjectFile(t, run, ".nvmrc"))
	assert.Contains(t, readProjectFile(t, run, ".mcp.json"), "exa")
	assert.Contains(t, readProjectFile(t, run, ".mcp-funnel.json"), "servers")
}

func TestConfigsStepKeepsExistingSettingsWithoutConsent(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))
	require.NoError(t, afero.WriteFile(run.FS, "/project/.claude/settings.local.json", []byte(`{"mine": true}`), 0644))

	require.NoError(t, (&configsStep{}).Apply(context.Background(), run))

	assert.Equal(t, `{"mine": true}`, readProjectFile(t, run, ".claude/settings.local.json"))
}

func TestConfigsStepOverwritesSettingsWhenForced(t *testing.T) {
	run := newTestRun(t)
	run.Options.OverwriteSettings = true
	require.NoError(t, (&filesStep{}).Apply(context.Background(), run))
	require.NoError(t, afero.WriteFile(run.FS, "/project/.claude/settings.local.json", []byte(`{"mine": true}`), 0644))

	require.NoError(t, (&configsStep{}).Apply(context.Background(), run))

	assert.Contains(t, readProjectFile(t, run, ".claude/settings.local.json"), "Read(/project/**)")
}

func TestConfigsStepPreservesExistingServers(t *testing.T) {
	run := newTestRun(t)
	existing := `{"mcpServers": {"exa": {"command": "docker", "args": ["run"]}}}`
	require.NoError(t, afero.WriteFile(run.FS, "/project/.mcp.json", []byte(existing), 0644))

	require.NoError(t, (&configsStep{}).Apply(context.Background(), run))

	merged := readProjectFile(t, run, ".mcp.json")
	assert.Contains(t, merged, "docker")
	assert.NotContains(t, merged, "npx")
}

func TestConfigsStepKeepsExistingFunnelManifest(t *testing.T) {
	run := newTestRun(t)
	require.NoError(t, afero.WriteFile(run.FS, "/project/.mcp-funnel.json", []byte(`{"servers": ["mine"]}`), 0644))

	require.NoError(t, (&configsStep{}).Apply(context.Background(), run))

	assert.Contains(t, readProjectFile(t, run, ".mcp-funnel.json"), "mine")
}

func TestFilesAndConfigsStepsAreIdempotent(t *testing.T) {
	run := newTestRun(t)
	ctx := context.Background()

	// The rules config converges on the second run, when the empty custom
	// sequence is materialized; every run after that is byte-stable
	for i := 0; i < 2; i++ {
		require.NoError(t, (&filesStep{}).Apply(ctx, run))
		require.NoError(t, (&configsStep{}).Apply(ctx, run))
	}

	rules := readProjectFile(t, run, ".claude/rules/config.yaml")
	settings := readProjectFile(t, run, ".claude/settings.local.json")
	manifest := readProjectFile(t, run, ".mcp.json")

	require.NoError(t, (&filesStep{}).Apply(ctx, run))
	require.NoError(t, (&configsStep{}).Apply(ctx, run))

	assert.Equal(t, rules, readProjectFile(t, run, ".claude/rules/config.yaml"))
	assert.Equal(t, settings, readProjectFile(t, run, ".claude/settings.local.json"))
	assert.Equal(t, manifest, readProjectFile(t, run, ".mcp.json"))
}

func TestEnvironmentStepAnnouncesSkip(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"skip env flag", Options{SkipEnv: true}},
		{"non-interactive run", Options{NonInteractive: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newTestRun(t)
			run.Options = tt.opts
			out := &bytes.Buffer{}
			run.Console = ui.NewTestConsole(out, strings.NewReader(""))

			assert.False(t, (&environmentStep{}).ShouldSkip(run))
			require.NoError(t, (&environmentStep{}).Apply(context.Background(), run))

			assert.Contains(t, out.String(), "Skipping .env setup")
			assert.False(t, filesystem.Exists(run.FS, "/project/.env.codepro"))
		})
	}
}

func TestEnvironmentStepPromptsAndWritesKeys(t *testing.T) {
	run := newTestRun(t)
	run.Options = Options{}
	out := &bytes.Buffer{}
	// Answers: token, address (default), username, password, then one per
	// remaining API key
	run.Console = ui.NewTestConsole(out, strings.NewReader("milvus-token\n\ndb_user\ndb_pass\nsk-openai\nexa-key\ngemini-key\n"))

	require.NoError(t, (&environmentStep{}).Apply(context.Background(), run))

	content := readProjectFile(t, run, ".env.codepro")
	assert.Contains(t, content, "MILVUS_TOKEN=milvus-token")
	assert.Contains(t, content, "MILVUS_ADDRESS=http://localhost:19530")
	assert.Contains(t, content, "VECTOR_STORE_USERNAME=db_user")
	assert.Contains(t, content, "VECTOR_STORE_PASSWORD=db_pass")
	assert.Contains(t, content, "OPENAI_API_KEY=sk-openai")
	assert.Contains(t, content, "EXA_API_KEY=exa-key")
	assert.Contains(t, content, "GEMINI_API_KEY=gemini-key")
	assert.Contains(t, content, "VECTOR_STORE_URL=http://localhost:19530")
}

func TestEnvironmentStepKeepsExistingValues(t *testing.T) {
	run := newTestRun(t)
	run.Options = Options{}
	require.NoError(t, afero.WriteFile(run.FS, "/project/.env.codepro", []byte("OPENAI_API_KEY=sk-existing\n"), 0644))
	// No answer is consumed for the already-set key
	run.Console = ui.NewTestConsole(&bytes.Buffer{}, strings.NewReader("milvus-token\n\ndb_user\ndb_pass\nexa-key\ngemini-key\n"))

	require.NoError(t, (&environmentStep{}).Apply(context.Background(), run))

	content := readProjectFile(t, run, ".env.codepro")
	assert.Contains(t, content, "OPENAI_API_KEY=sk-existing")
	assert.Contains(t, content, "EXA_API_KEY=exa-key")
	assert.Contains(t, content, "GEMINI_API_KEY=gemini-key")
}

func TestConfigsStepRollbackRemovesGeneratedSettings(t *testing.T) {
	run := newTestRun(t)
	ctx := context.Background()
	require.NoError(t, (&filesStep{}).Apply(ctx, run))
	require.NoError(t, (&configsStep{}).Apply(ctx, run))
	require.True(t, filesystem.Exists(run.FS, "/project/.claude/settings.local.json"))

	require.NoError(t, (&configsStep{}).Rollback(ctx, run))

	assert.False(t, filesystem.Exists(run.FS, "/project/.claude/settings.local.json"))
}
