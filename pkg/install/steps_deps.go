package install

import (
	"context"
	"fmt"

	"github.com/maxritter/codepro/pkg/deps"
)

// dependenciesStep installs the vendor developer tools. It never skips:
// tool versions drift and every probe must be re-evaluated each run.
// Failures are soft; the aggregated outcomes are reported and recorded
// on the run context.
type dependenciesStep struct{}

func (s *dependenciesStep) Name() string { return "dependencies" }

func (s *dependenciesStep) ShouldSkip(run *Context) bool { return false }

func (s *dependenciesStep) Apply(ctx context.Context, run *Context) error {
	run.Console.Section("Installing Dependencies")

	installer := run.Installer

	s.record(run, installer.InstallNodeJS(ctx))

	if run.Options.InstallPython {
		s.record(run, installer.InstallUV(ctx))
		s.record(run, installer.InstallPythonTools(ctx))
	}

	run.Console.Status("Claude Code CLI installation may take 1-2 minutes...")
	s.record(run, installer.InstallClaudeCode(ctx))

	s.record(run, installer.InstallBun(ctx))

	s.record(run, installer.InstallClaudeMem(ctx))

	run.Console.Status("Starting local Milvus for Claude Context...")
	milvus := installer.InstallLocalMilvus(ctx, run.Source, run.Console)
	s.record(run, milvus)
	if milvus.Outcome == deps.Installed {
		run.Console.Success("Local Milvus started")
	}

	qlty := installer.InstallQlty(ctx, run.ProjectDir)
	s.record(run, qlty)
	if qlty.Outcome != deps.Failed {
		run.Console.Status("Downloading qlty prerequisites (linters)...")
		installer.WarmUpQlty(ctx, run.ProjectDir, run.Console)
	}

	s.record(run, installer.InstallCipher(ctx))
	s.record(run, installer.InstallNewman(ctx))
	s.record(run, installer.InstallDotenvx(ctx))

	return nil
}

// record stores the outcome on the run context and tells the operator
func (s *dependenciesStep) record(run *Context, result deps.Result) {
	run.InstalledTools = append(run.InstalledTools, result)

	switch result.Outcome {
	case deps.Installed:
		run.Console.Success(fmt.Sprintf("%s installed", result.Tool))
	case deps.AlreadyPresent:
		run.Console.Success(fmt.Sprintf("%s already installed", result.Tool))
	case deps.Failed:
		run.Console.Warning(fmt.Sprintf("Could not install %s - please install manually", result.Tool))
	}
}

func (s *dependenciesStep) Rollback(ctx context.Context, run *Context) error {
	// Uninstalling global developer tools would be more disruptive than
	// leaving them
	return nil
}
