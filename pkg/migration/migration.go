// Package migration evolves on-disk state left behind by earlier
// installer versions. Migrations run in declared order before any file
// installation; each is idempotent and reruns as a no-op.
package migration

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/maxritter/codepro/pkg/envfile"
	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/logging"
	"github.com/maxritter/codepro/pkg/paths"
)

// Context carries the state migrations operate on
type Context struct {
	FS           afero.Fs
	ProjectDir   string
	Store        *envfile.Store
	ObsoleteKeys []string
}

// Migration is one ordered, idempotent schema-evolution step. Apply
// reports whether it mutated anything.
type Migration struct {
	Name  string
	Apply func(*Context) (bool, error)
}

// All returns the migrations in execution order
func All() []Migration {
	return []Migration{
		{Name: "rename-env-file", Apply: renameEnvFile},
		{Name: "prune-obsolete-env-keys", Apply: pruneObsoleteEnvKeys},
		{Name: "drop-consumed-settings-template", Apply: dropConsumedSettingsTemplate},
	}
}

// Run applies all migrations in order and returns the names of those
// that changed anything
func Run(ctx *Context) ([]string, error) {
	logger := logging.GetLogger("migration")

	applied := []string{}
	for _, m := range All() {
		changed, err := m.Apply(ctx)
		if err != nil {
			return applied, errors.Wrapf(err, errors.ErrStepFailed, "migration %s failed", m.Name)
		}
		if changed {
			logger.Info().Str("migration", m.Name).Msg("Migration applied")
			applied = append(applied, m.Name)
		}
	}
	return applied, nil
}

// renameEnvFile moves .env to .env.codepro. Skipped when the old file is
// absent or the new file already exists (the old file then stays as the
// user's own, unmanaged).
func renameEnvFile(ctx *Context) (bool, error) {
	oldPath := filepath.Join(ctx.ProjectDir, paths.LegacyEnvFile)
	newPath := filepath.Join(ctx.ProjectDir, paths.EnvFile)

	if !filesystem.Exists(ctx.FS, oldPath) || filesystem.Exists(ctx.FS, newPath) {
		return false, nil
	}

	if err := ctx.FS.Rename(oldPath, newPath); err != nil {
		return false, err
	}
	return true, nil
}

// pruneObsoleteEnvKeys drops keys no longer consumed by any managed tool
func pruneObsoleteEnvKeys(ctx *Context) (bool, error) {
	envPath := filepath.Join(ctx.ProjectDir, paths.EnvFile)
	if !filesystem.Exists(ctx.FS, envPath) {
		return false, nil
	}

	removed, err := ctx.Store.PruneKeys(ctx.ObsoleteKeys, envPath)
	if err != nil {
		return false, err
	}
	if len(removed) > 0 {
		logger := logging.GetLogger("migration")
		logger.Debug().Strs("keys", removed).Msg("Pruned obsolete env keys")
	}
	return len(removed) > 0, nil
}

// dropConsumedSettingsTemplate removes a template file left behind after
// its settings file was already materialized
func dropConsumedSettingsTemplate(ctx *Context) (bool, error) {
	templatePath := filepath.Join(ctx.ProjectDir, filepath.FromSlash(paths.SettingsTemplateFile))
	settingsPath := filepath.Join(ctx.ProjectDir, filepath.FromSlash(paths.SettingsFile))

	if !filesystem.Exists(ctx.FS, templatePath) || !filesystem.Exists(ctx.FS, settingsPath) {
		return false, nil
	}

	if err := ctx.FS.Remove(templatePath); err != nil {
		return false, err
	}
	return true, nil
}
