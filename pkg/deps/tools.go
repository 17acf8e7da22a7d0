// Package deps installs the fixed set of third-party developer tools via
// their official shell installers. Every install is a soft operation: a
// failed tool is reported, never fatal.
package deps

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/logging"
	"github.com/maxritter/codepro/pkg/paths"
	"github.com/maxritter/codepro/pkg/source"
	"github.com/maxritter/codepro/pkg/ui"
)

// ToolAvailability probes whether an external command is installed.
// A port rather than scattered lookups so tests can substitute it.
type ToolAvailability interface {
	CommandExists(name string) bool
}

// ExecAvailability checks the real PATH
type ExecAvailability struct{}

// CommandExists implements ToolAvailability
func (ExecAvailability) CommandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ToolOutcome is the result category of one tool install
type ToolOutcome string

const (
	// Installed means the tool was freshly installed this run
	Installed ToolOutcome = "installed"

	// AlreadyPresent means the tool was found and left alone
	AlreadyPresent ToolOutcome = "already-present"

	// Failed means installation did not succeed; the run continues
	Failed ToolOutcome = "failed"
)

// Result records the outcome of one tool install for aggregation
type Result struct {
	Tool    string
	Outcome ToolOutcome
}

// Installer runs the vendor tool installers
type Installer struct {
	runner Runner
	tools  ToolAvailability
	fs     afero.Fs
}

// NewInstaller creates an installer over the given runner, availability
// check and filesystem
func NewInstaller(runner Runner, tools ToolAvailability, fs afero.Fs) *Installer {
	return &Installer{runner: runner, tools: tools, fs: fs}
}

// install wraps the common present-check / shell-install / outcome shape
func (i *Installer) install(ctx context.Context, tool, probe, command, dir string) Result {
	if probe != "" && i.tools.CommandExists(probe) {
		return Result{Tool: tool, Outcome: AlreadyPresent}
	}
	if err := i.runner.RunShell(ctx, command, dir); err != nil {
		logger := logging.GetLogger("deps")
		logger.Warn().Err(err).Str("tool", tool).Msg("Tool installation failed")
		return Result{Tool: tool, Outcome: Failed}
	}
	return Result{Tool: tool, Outcome: Installed}
}

// InstallNodeJS installs Node.js 22 via nvm
func (i *Installer) InstallNodeJS(ctx context.Context) Result {
	if i.tools.CommandExists("node") {
		return Result{Tool: "nodejs", Outcome: AlreadyPresent}
	}

	// nvm is a shell function, not a binary; probe its install dir instead
	nvmDir := paths.ExpandHome("~/.nvm")
	if !filesystem.Exists(i.fs, nvmDir) {
		if err := i.runner.RunShell(ctx,
			"curl -o- https://raw.githubusercontent.com/nvm-sh/nvm/v0.40.0/install.sh | bash", ""); err != nil {
			logger := logging.GetLogger("deps")
			logger.Warn().Err(err).Msg("nvm bootstrap failed")
			return Result{Tool: "nodejs", Outcome: Failed}
		}
	}

	if err := i.runner.RunShell(ctx, "source ~/.nvm/nvm.sh && nvm install 22 && nvm use 22", ""); err != nil {
		return Result{Tool: "nodejs", Outcome: Failed}
	}
	return Result{Tool: "nodejs", Outcome: Installed}
}

// InstallUV installs the uv package manager
func (i *Installer) InstallUV(ctx context.Context) Result {
	return i.install(ctx, "uv", "uv", "curl -LsSf https://astral.sh/uv/install.sh | sh", "")
}

// InstallPythonTools installs the Python quality toolchain via uv
func (i *Installer) InstallPythonTools(ctx context.Context) Result {
	installed := false
	for _, tool := range []string{"ruff", "mypy", "basedpyright"} {
		if i.tools.CommandExists(tool) {
			continue
		}
		if err := i.runner.RunShell(ctx, "uv tool install "+tool, ""); err != nil {
			logger := logging.GetLogger("deps")
			logger.Warn().Err(err).Str("tool", tool).Msg("Python tool installation failed")
			return Result{Tool: "python-tools", Outcome: Failed}
		}
		installed = true
	}
	if !installed {
		return Result{Tool: "python-tools", Outcome: AlreadyPresent}
	}
	return Result{Tool: "python-tools", Outcome: Installed}
}

// InstallClaudeCode installs the Claude Code CLI via its official installer
func (i *Installer) InstallClaudeCode(ctx context.Context) Result {
	return i.install(ctx, "claude-code", "claude", "curl -fsSL https://claude.ai/install.sh | bash", "")
}

// InstallQlty installs the qlty code quality tool into the project
func (i *Installer) InstallQlty(ctx context.Context, projectDir string) Result {
	qltyBin := paths.ExpandHome("~/.qlty/bin/qlty")
	if i.tools.CommandExists("qlty") || i.tools.CommandExists(qltyBin) {
		return Result{Tool: "qlty", Outcome: AlreadyPresent}
	}
	return i.install(ctx, "qlty", "", "curl https://qlty.sh | bash", projectDir)
}

// WarmUpQlty pre-downloads qlty's linter prerequisites, streaming
// progress lines to the console. Failures are ignored; the next qlty run
// downloads on demand instead.
func (i *Installer) WarmUpQlty(ctx context.Context, projectDir string, console *ui.Console) {
	qltyBin := paths.ExpandHome("~/.qlty/bin/qlty")
	command := qltyBin + " check --no-fix --no-formatters --no-fail --install-only"

	err := i.runner.RunShellStreaming(ctx, command, projectDir, func(line string) {
		console.Line(line)
	})
	if err != nil {
		logger := logging.GetLogger("deps")
		logger.Debug().Err(err).Msg("qlty warm-up incomplete")
	}
}

// RunBuildScript executes a project build script once, without retry
func (i *Installer) RunBuildScript(ctx context.Context, script, dir string) error {
	return i.runner.RunShellStreaming(ctx, "bash "+script, dir, nil)
}

// knownMarketplaces is written alongside the claude-mem plugin so the
// plugin manager recognizes its source repositories
func knownMarketplaces(pluginsDir string) map[string]interface{} {
	return map[string]interface{}{
		"claude-plugins-official": map[string]interface{}{
			"source": map[string]interface{}{
				"source": "github",
				"repo":   "anthropics/claude-plugins-official",
			},
			"installLocation": filepath.Join(pluginsDir, "marketplaces", "claude-plugins-official"),
			"lastUpdated":     "2025-12-16T18:12:11.651Z",
		},
		"thedotmack": map[string]interface{}{
			"source": map[string]interface{}{
				"source": "github",
				"repo":   "thedotmack/claude-mem",
			},
			"installLocation": filepath.Join(pluginsDir, "marketplaces", "thedotmack"),
			"lastUpdated":     "2025-12-17T03:35:56.709Z",
		},
	}
}

// InstallClaudeMem installs the claude-mem plugin for persistent memory
// across sessions: clone, build with bun (npm fallback) and register the
// plugin marketplaces.
func (i *Installer) InstallClaudeMem(ctx context.Context) Result {
	logger := logging.GetLogger("deps")

	pluginsDir := paths.ExpandHome("~/.claude/plugins")
	pluginDir := filepath.Join(pluginsDir, "thedotmack")

	if filesystem.Exists(i.fs, filepath.Join(pluginDir, "dist")) {
		return Result{Tool: "claude-mem", Outcome: AlreadyPresent}
	}

	if err := i.fs.MkdirAll(pluginsDir, 0755); err != nil {
		logger.Warn().Err(err).Msg("Could not create plugins directory")
		return Result{Tool: "claude-mem", Outcome: Failed}
	}

	if !filesystem.Exists(i.fs, pluginDir) {
		if err := i.runner.RunShell(ctx,
			"git clone https://github.com/thedotmack/claude-mem.git thedotmack", pluginsDir); err != nil {
			logger.Warn().Err(err).Msg("claude-mem clone failed")
			return Result{Tool: "claude-mem", Outcome: Failed}
		}
	}

	build := "npm install && npm run build"
	if i.tools.CommandExists("bun") {
		build = "bun install && bun run build"
	}
	if err := i.runner.RunShell(ctx, build, pluginDir); err != nil {
		logger.Warn().Err(err).Msg("claude-mem build failed")
		return Result{Tool: "claude-mem", Outcome: Failed}
	}

	manifest, err := json.MarshalIndent(knownMarketplaces(pluginsDir), "", "  ")
	if err != nil {
		return Result{Tool: "claude-mem", Outcome: Failed}
	}
	manifestPath := filepath.Join(pluginsDir, "known_marketplaces.json")
	if err := filesystem.WriteFileAtomic(i.fs, manifestPath, append(manifest, '\n'), 0644); err != nil {
		logger.Warn().Err(err).Msg("Could not write marketplaces manifest")
		return Result{Tool: "claude-mem", Outcome: Failed}
	}

	return Result{Tool: "claude-mem", Outcome: Installed}
}

// milvusComposePath is the compose file location inside the repository
const milvusComposePath = ".claude/scripts/milvus/docker-compose.yml"

// milvusRunning checks once for the standalone Milvus container; a
// missing docker binary reads as not running.
func (i *Installer) milvusRunning(ctx context.Context) bool {
	running := false
	err := i.runner.RunShellStreaming(ctx,
		`docker ps --filter name=milvus-standalone --format '{{.Names}}'`, "",
		func(line string) {
			if strings.Contains(line, "milvus-standalone") {
				running = true
			}
		})
	return err == nil && running
}

// InstallLocalMilvus brings up the local Milvus vector store with docker
// compose in ~/.claude/milvus/, streaming container bring-up output to
// the console. A compose run that fails because the containers already
// exist counts as success.
func (i *Installer) InstallLocalMilvus(ctx context.Context, src source.Provider, console *ui.Console) Result {
	logger := logging.GetLogger("deps")

	if i.milvusRunning(ctx) {
		return Result{Tool: "local-milvus", Outcome: AlreadyPresent}
	}

	milvusDir := paths.ExpandHome("~/.claude/milvus")
	composeFile := filepath.Join(milvusDir, "docker-compose.yml")
	if err := src.DownloadFile(milvusComposePath, composeFile); err != nil {
		logger.Warn().Err(err).Msg("Could not fetch the Milvus compose file")
		return Result{Tool: "local-milvus", Outcome: Failed}
	}

	var output []string
	err := i.runner.RunShellStreaming(ctx,
		"sudo docker compose --progress=plain up -d", milvusDir,
		func(line string) {
			output = append(output, line)
			console.Line(line)
		})
	if err != nil {
		joined := strings.Join(output, "\n")
		if strings.Contains(joined, "is already in use") || strings.Contains(joined, "Conflict") {
			return Result{Tool: "local-milvus", Outcome: AlreadyPresent}
		}
		logger.Warn().Err(err).Msg("Milvus bring-up failed")
		return Result{Tool: "local-milvus", Outcome: Failed}
	}

	return Result{Tool: "local-milvus", Outcome: Installed}
}

// InstallCipher installs the cipher memory MCP server
func (i *Installer) InstallCipher(ctx context.Context) Result {
	return i.install(ctx, "cipher", "cipher", "npm install -g @byterover/cipher", "")
}

// InstallNewman installs the newman API test runner
func (i *Installer) InstallNewman(ctx context.Context) Result {
	return i.install(ctx, "newman", "newman", "npm install -g newman", "")
}

// InstallDotenvx installs dotenvx for environment variable management
func (i *Installer) InstallDotenvx(ctx context.Context) Result {
	return i.install(ctx, "dotenvx", "dotenvx", "curl -sfS https://dotenvx.sh | sh", "")
}

// InstallBun installs the bun runtime
func (i *Installer) InstallBun(ctx context.Context) Result {
	return i.install(ctx, "bun", "bun", "curl -fsSL https://bun.sh/install | bash", "")
}
