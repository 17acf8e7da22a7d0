package install

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/logging"
	"github.com/maxritter/codepro/pkg/paths"
	"github.com/maxritter/codepro/pkg/reconcile"
)

// nodeVersion is pinned via .nvmrc for the project
const nodeVersion = "22\n"

// configsStep materializes settings from the template, pins the Node
// version, installs the auxiliary config directories and merges the MCP
// manifests
type configsStep struct{}

func (s *configsStep) Name() string { return "configs" }

func (s *configsStep) ShouldSkip(run *Context) bool { return false }

func (s *configsStep) Apply(ctx context.Context, run *Context) error {
	run.Console.Section("Configuring Project")

	if err := s.generateSettings(run); err != nil {
		return err
	}

	if err := afero.WriteFile(run.FS, filepath.Join(run.ProjectDir, paths.NvmrcFile), []byte(nodeVersion), 0644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "failed to write .nvmrc")
	}

	// One-shot directories: installed on first run, then owned by the user
	for _, dir := range []string{".cipher", ".qlty"} {
		if filesystem.Exists(run.FS, filepath.Join(run.ProjectDir, dir)) {
			continue
		}
		s.installDirectory(run, dir)
	}

	s.mergeManifest(run, paths.MCPConfigFile)
	s.installFunnelManifest(run)
	return nil
}

// generateSettings expands the settings template with the absolute
// project path. An existing settings file is regenerated only with
// explicit consent: a prompt when interactive, the OVERWRITE_SETTINGS
// override when not. The template is consumed after materialization
// except in local mirror mode, where it may be the mirror's own copy.
func (s *configsStep) generateSettings(run *Context) error {
	templatePath := paths.InProject(run.ProjectDir, paths.SettingsTemplateFile)
	settingsPath := paths.InProject(run.ProjectDir, paths.SettingsFile)

	template, err := afero.ReadFile(run.FS, templatePath)
	if err != nil {
		run.Console.Warning("Settings template not found, skipping settings generation")
		return nil
	}

	if filesystem.Exists(run.FS, settingsPath) {
		regenerate := run.Options.OverwriteSettings
		if !run.Options.NonInteractive {
			run.Console.Warning("settings.local.json already exists")
			run.Console.Print("This file may contain new features in this version.")
			regenerate = run.Console.Confirm("Regenerate settings.local.json from template?", false)
		}
		if !regenerate {
			run.Console.Success("Kept existing settings.local.json")
			return nil
		}
	}

	expanded := reconcile.ExpandSettingsTemplate(template, run.ProjectDir)
	settings, err := reconcile.ParseSettings(expanded)
	if err != nil {
		run.Console.Warning("Settings template is not valid JSON, skipping settings generation")
		logger := logging.GetLogger("install.configs")
		logger.Warn().Err(err).Msg("Settings template parse failed")
		return nil
	}

	if !run.Options.InstallPython {
		reconcile.StripPythonSettings(settings, run.Settings.Python.HookMarker, run.Settings.Python.Permissions)
	}

	out, err := reconcile.EncodeSettings(settings)
	if err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(run.FS, settingsPath, out, 0644); err != nil {
		return err
	}

	if !run.Options.LocalMode {
		_ = run.FS.Remove(templatePath)
	}

	run.Console.Success("Generated settings.local.json")
	return nil
}

// installDirectory copies one repository directory into the project
func (s *configsStep) installDirectory(run *Context, dir string) {
	logger := logging.GetLogger("install.configs")

	files, err := run.Source.ListDirectory(dir)
	if err != nil {
		run.Console.Warning(fmt.Sprintf("Could not list %s, skipping", dir))
		logger.Warn().Err(err).Str("dir", dir).Msg("Directory listing failed")
		return
	}

	count := 0
	for _, repoPath := range files {
		dest := paths.InProject(run.ProjectDir, repoPath)
		if err := run.Source.DownloadFile(repoPath, dest); err != nil {
			logger.Warn().Err(err).Str("path", repoPath).Msg("File install failed")
			continue
		}
		count++
	}
	run.Console.Success(fmt.Sprintf("Installed %s directory (%d files)", dir, count))
}

// mergeManifest reconciles a fetched MCP server manifest with the
// on-disk one; existing server entries always win
func (s *configsStep) mergeManifest(run *Context, repoPath string) {
	logger := logging.GetLogger("install.configs")
	dest := paths.InProject(run.ProjectDir, repoPath)

	fetched, err := run.Source.FetchFile(repoPath)
	if err != nil {
		run.Console.Warning(fmt.Sprintf("Failed to fetch %s", repoPath))
		logger.Warn().Err(err).Str("path", repoPath).Msg("Manifest fetch failed")
		return
	}

	existing, readErr := afero.ReadFile(run.FS, dest)
	if readErr != nil {
		existing = nil
	}

	merged, outcome := reconcile.MergeServerManifest(existing, fetched)
	switch {
	case outcome == reconcile.OutcomeFailedSoft:
		run.Console.Warning(fmt.Sprintf("Could not merge %s, kept existing file", repoPath))
	case outcome.Changed():
		if err := filesystem.WriteFileAtomic(run.FS, dest, merged, 0644); err != nil {
			run.Console.Warning(fmt.Sprintf("Failed to write %s", repoPath))
			logger.Warn().Err(err).Str("path", repoPath).Msg("Manifest write failed")
			return
		}
		if outcome == reconcile.OutcomeMerged {
			run.Console.Success(fmt.Sprintf("Merged %s (preserved existing servers)", repoPath))
		} else {
			run.Console.Success(fmt.Sprintf("Created %s", repoPath))
		}
	}
}

// installFunnelManifest creates .mcp-funnel.json only when absent; once
// on disk it belongs to the user
func (s *configsStep) installFunnelManifest(run *Context) {
	dest := paths.InProject(run.ProjectDir, paths.MCPFunnelConfigFile)
	if filesystem.Exists(run.FS, dest) {
		run.Console.Success(".mcp-funnel.json already exists, skipping")
		return
	}

	if err := run.Source.DownloadFile(paths.MCPFunnelConfigFile, dest); err != nil {
		run.Console.Warning("Failed to install .mcp-funnel.json")
		return
	}
	run.Console.Success("Installed .mcp-funnel.json")
}

func (s *configsStep) Rollback(ctx context.Context, run *Context) error {
	// Generated settings are the only artifact of this step that is not
	// reproducible by hand
	settingsPath := paths.InProject(run.ProjectDir, paths.SettingsFile)
	if filesystem.Exists(run.FS, settingsPath) {
		return run.FS.Remove(settingsPath)
	}
	return nil
}
