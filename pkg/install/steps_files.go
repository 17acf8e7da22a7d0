package install

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/logging"
	"github.com/maxritter/codepro/pkg/paths"
	"github.com/maxritter/codepro/pkg/reconcile"
)

// filesStep installs the managed .claude tree: standard rules are
// refreshed wholesale, user-owned custom rules and generated settings
// are never touched, and the rules config is merged rather than replaced.
type filesStep struct{}

func (s *filesStep) Name() string { return "files" }

// Never skipped: the published file set may have changed since last run
func (s *filesStep) ShouldSkip(run *Context) bool { return false }

func (s *filesStep) Apply(ctx context.Context, run *Context) error {
	logger := logging.GetLogger("install.files")
	run.Console.Section("Installing Files")

	// Standard rules directories are fully managed; clean them so rules
	// deleted upstream disappear locally too
	for _, category := range paths.RuleCategories {
		dir := paths.StandardRulesDir(run.ProjectDir, category)
		if filesystem.Exists(run.FS, dir) {
			if err := run.FS.RemoveAll(dir); err != nil {
				return errors.Wrapf(err, errors.ErrFileAccess, "failed to clean %s", dir)
			}
		}
		if err := run.FS.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", dir)
		}
	}

	policy := reconcile.SkipPolicy{
		InstallPython:    run.Options.InstallPython,
		PythonHookMarker: run.Settings.Python.HookMarker,
	}

	files, err := run.Source.ListDirectory(paths.ClaudeDir)
	if err != nil {
		// Nothing to install is not fatal; the operator is told and the
		// run continues with what is already on disk
		run.Console.Warning("Could not list repository files, skipping file installation")
		logger.Warn().Err(err).Msg("Repository listing failed")
		return nil
	}

	installed := 0
	for _, repoPath := range files {
		if repoPath == "" || policy.SkipManagedPath(repoPath) {
			continue
		}

		if strings.HasSuffix(repoPath, "rules/config.yaml") {
			if err := s.installRulesConfig(run, repoPath); err != nil {
				return err
			}
			installed++
			continue
		}

		dest := paths.InProject(run.ProjectDir, repoPath)
		if err := run.Source.DownloadFile(repoPath, dest); err != nil {
			run.Console.Warning(fmt.Sprintf("Failed to install %s", repoPath))
			logger.Warn().Err(err).Str("path", repoPath).Msg("File install failed")
			continue
		}
		installed++
	}
	run.Console.Success(fmt.Sprintf("Installed %d files", installed))

	// Custom rules directories exist from the first run on so users have
	// a place to put their own rules
	for _, category := range paths.RuleCategories {
		dir := paths.CustomRulesDir(run.ProjectDir, category)
		if filesystem.Exists(run.FS, dir) {
			continue
		}
		if err := run.FS.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "failed to create %s", dir)
		}
		if err := afero.WriteFile(run.FS, filepath.Join(dir, ".gitkeep"), nil, 0644); err != nil {
			return errors.Wrapf(err, errors.ErrFileWrite, "failed to create %s/.gitkeep", dir)
		}
	}

	s.markHooksExecutable(run)
	return nil
}

// installRulesConfig merges the fetched rules config with the existing
// one so user custom rules survive the update
func (s *filesStep) installRulesConfig(run *Context, repoPath string) error {
	logger := logging.GetLogger("install.files")
	dest := paths.InProject(run.ProjectDir, repoPath)

	fetched, err := run.Source.FetchFile(repoPath)
	if err != nil {
		run.Console.Warning("Failed to fetch rules config")
		logger.Warn().Err(err).Msg("Rules config fetch failed")
		return nil
	}

	existing, readErr := afero.ReadFile(run.FS, dest)
	if readErr != nil {
		existing = nil
	}

	merged, outcome := reconcile.MergeRulesConfig(existing, fetched)
	switch {
	case outcome == reconcile.OutcomeFailedSoft:
		run.Console.Warning("Could not merge rules config, kept existing file")
	case outcome.Changed():
		if err := filesystem.WriteFileAtomic(run.FS, dest, merged, 0644); err != nil {
			return err
		}
		if outcome == reconcile.OutcomeMerged {
			run.Console.Success("Merged rules config (preserved custom rules)")
		}
	}
	return nil
}

// markHooksExecutable sets the exec bit on installed hook scripts.
// Best-effort: in-memory test filesystems ignore modes.
func (s *filesStep) markHooksExecutable(run *Context) {
	hooksDir := filepath.Join(run.ProjectDir, paths.ClaudeDir, "hooks")
	entries, err := afero.ReadDir(run.FS, hooksDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sh") {
			continue
		}
		_ = run.FS.Chmod(filepath.Join(hooksDir, entry.Name()), 0755)
	}
}

func (s *filesStep) Rollback(ctx context.Context, run *Context) error {
	// Installed files are exactly what the next run would lay down
	// again; removing them would only widen the blast radius
	return nil
}
