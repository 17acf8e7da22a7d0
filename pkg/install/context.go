// Package install orchestrates a full installer run: a fixed sequence of
// steps sharing one mutable run context, with best-effort rollback of
// completed steps when a required step fails.
package install

import (
	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/config"
	"github.com/maxritter/codepro/pkg/deps"
	"github.com/maxritter/codepro/pkg/envfile"
	"github.com/maxritter/codepro/pkg/source"
	"github.com/maxritter/codepro/pkg/ui"
)

// Options are the operator-selected switches for a run
type Options struct {
	NonInteractive bool
	SkipEnv        bool
	LocalMode      bool
	LocalRepoDir   string

	// InstallPython selects the optional Python toolchain and its
	// hooks/permissions
	InstallPython bool

	// OverwriteSettings forces settings regeneration in non-interactive
	// mode (OVERWRITE_SETTINGS env var)
	OverwriteSettings bool
}

// Context is the shared, mutable state steps communicate through. Steps
// never reach into each other's internals, only into this context.
type Context struct {
	ProjectDir string
	Options    Options
	Settings   *config.Settings

	FS        afero.Fs
	Source    source.Provider
	Env       envfile.EnvironmentView
	Console   *ui.Console
	Installer *deps.Installer

	// InstalledTools accumulates per-tool outcomes from the
	// dependencies step
	InstalledTools []deps.Result
}

// EnvStore returns a key-value store bound to this run's filesystem and
// environment view
func (c *Context) EnvStore() *envfile.Store {
	return envfile.NewStore(c.FS, c.Env)
}
