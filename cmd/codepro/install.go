package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxritter/codepro/pkg/config"
	"github.com/maxritter/codepro/pkg/deps"
	"github.com/maxritter/codepro/pkg/envfile"
	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/filesystem"
	"github.com/maxritter/codepro/pkg/install"
	"github.com/maxritter/codepro/pkg/source"
	"github.com/maxritter/codepro/pkg/ui"
)

// runInstall assembles the run context and executes the step sequence
func runInstall(ctx context.Context) error {
	if localRepoDir != "" && !localMode {
		return errors.New(errors.ErrInvalidInput, "--local-repo-dir requires --local")
	}

	projectDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot determine project directory")
	}
	projectDir, err = filepath.Abs(projectDir)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot resolve project directory")
	}

	settings, err := config.Load(projectDir)
	if err != nil {
		return errors.Wrap(err, errors.ErrStepFailed, "failed to load installer configuration")
	}

	console := ui.NewConsole()
	fs := filesystem.NewOS()
	env := envfile.OSEnvironment{}

	mirrorDir := localRepoDir
	if localMode && mirrorDir == "" {
		mirrorDir = projectDir
	}

	opts := install.Options{
		NonInteractive:    nonInteractive,
		SkipEnv:           skipEnv,
		LocalMode:         localMode,
		LocalRepoDir:      mirrorDir,
		OverwriteSettings: envFlag(env, "OVERWRITE_SETTINGS", false),
	}

	console.Section("Claude CodePro Installation")
	console.Status("Installing into: " + projectDir)

	if nonInteractive || !console.Interactive() {
		opts.InstallPython = envFlag(env, "INSTALL_PYTHON", true)
	} else {
		console.Print("")
		console.Print("Advanced Python features include uv, ruff, mypy, basedpyright and quality hooks.")
		opts.InstallPython = console.Confirm("Install Python support?", true)
	}

	run := &install.Context{
		ProjectDir: projectDir,
		Options:    opts,
		Settings:   settings,
		FS:         fs,
		Source: source.New(source.Config{
			RepoURL:      settings.Repo.URL,
			Branch:       settings.Repo.Branch,
			APIHost:      settings.Repo.APIHost,
			LocalMode:    opts.LocalMode,
			LocalRepoDir: opts.LocalRepoDir,
		}, fs),
		Env:       env,
		Console:   console,
		Installer: deps.NewInstaller(deps.NewRunner(), deps.ExecAvailability{}, fs),
	}

	if err := install.NewRunner().Run(ctx, run, install.Steps()); err != nil {
		console.Error("Installation failed: " + err.Error())
		return err
	}

	console.Section("Installation Complete")
	console.Print("Reload your shell (source ~/.zshrc or ~/.bashrc), then start with: ccp")
	return nil
}

// envFlag reads a Y/N-style environment switch
func envFlag(env envfile.EnvironmentView, key string, def bool) bool {
	v, ok := env.Lookup(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}
