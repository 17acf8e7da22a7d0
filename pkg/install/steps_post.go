package install

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/logging"
	"github.com/maxritter/codepro/pkg/paths"
)

// buildStep runs the installed build script to derive commands and
// skills from the rule files
type buildStep struct{}

func (s *buildStep) Name() string { return "build" }

func (s *buildStep) ShouldSkip(run *Context) bool {
	return !filesystem.Exists(run.FS, paths.InProject(run.ProjectDir, paths.BuildScript))
}

func (s *buildStep) Apply(ctx context.Context, run *Context) error {
	run.Console.Section("Building Rules")
	run.Console.Status("Building commands and skills...")

	script := paths.InProject(run.ProjectDir, paths.BuildScript)
	_ = run.FS.Chmod(script, 0755)

	if err := run.Installer.RunBuildScript(ctx, script, run.ProjectDir); err != nil {
		// A failed build is repairable by hand and must not unwind the
		// whole installation
		run.Console.Warning(fmt.Sprintf("Failed to build commands and skills - run 'bash %s' manually", paths.BuildScript))
		logger := logging.GetLogger("install.build")
		logger.Warn().Err(err).Msg("Build script failed")
		return nil
	}

	run.Console.Success("Built commands and skills")
	return nil
}

func (s *buildStep) Rollback(ctx context.Context, run *Context) error { return nil }

// statuslineStep installs the statusline configuration into the
// machine-level ccstatusline config directory
type statuslineStep struct{}

func (s *statuslineStep) Name() string { return "statusline" }

func (s *statuslineStep) ShouldSkip(run *Context) bool {
	return !filesystem.Exists(run.FS, paths.InProject(run.ProjectDir, paths.StatuslineFile))
}

func (s *statuslineStep) Apply(ctx context.Context, run *Context) error {
	run.Console.Section("Installing Statusline Configuration")

	src := paths.InProject(run.ProjectDir, paths.StatuslineFile)
	dst := paths.StatuslineTarget()

	if err := filesystem.CopyFile(run.FS, src, dst); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "failed to install statusline configuration")
	}

	run.Console.Success("Installed statusline configuration")
	return nil
}

func (s *statuslineStep) Rollback(ctx context.Context, run *Context) error { return nil }

// ccpAlias launches Claude Code with the managed env file loaded
const ccpAlias = `alias ccp='dotenvx run -f .env.codepro --ignore=MISSING_ENV_FILE -- claude'`

// shellStep appends the ccp alias to the user's shell rc file, once
type shellStep struct{}

func (s *shellStep) Name() string { return "shell" }

func (s *shellStep) ShouldSkip(run *Context) bool { return false }

func (s *shellStep) Apply(ctx context.Context, run *Context) error {
	run.Console.Section("Configuring Shell")

	rcPath := paths.ShellRCPath()
	content, err := afero.ReadFile(run.FS, rcPath)
	if err != nil {
		content = nil
	}

	if strings.Contains(string(content), "alias ccp=") {
		run.Console.Success("Shell alias already configured")
		return nil
	}

	updated := string(content)
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += "\n# Claude CodePro\n" + ccpAlias + "\n"

	if err := filesystem.WriteFileAtomic(run.FS, rcPath, []byte(updated), 0644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "failed to update shell configuration")
	}

	run.Console.Success(fmt.Sprintf("Added ccp alias to %s", rcPath))
	return nil
}

func (s *shellStep) Rollback(ctx context.Context, run *Context) error { return nil }
