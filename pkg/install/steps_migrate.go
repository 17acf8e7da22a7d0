package install

import (
	"context"
	"fmt"

	"github.com/maxritter/codepro/pkg/migration"
)

// migrateStep evolves on-disk state from earlier installer versions
// before any files are installed
type migrateStep struct{}

func (s *migrateStep) Name() string { return "migrate" }

func (s *migrateStep) ShouldSkip(run *Context) bool { return false }

func (s *migrateStep) Apply(ctx context.Context, run *Context) error {
	applied, err := migration.Run(&migration.Context{
		FS:           run.FS,
		ProjectDir:   run.ProjectDir,
		Store:        run.EnvStore(),
		ObsoleteKeys: run.Settings.Env.ObsoleteKeys,
	})
	if err != nil {
		return err
	}

	for _, name := range applied {
		run.Console.Success(fmt.Sprintf("Applied migration: %s", name))
	}
	return nil
}

func (s *migrateStep) Rollback(ctx context.Context, run *Context) error {
	// Migrations move user data forward; undoing them would lose it
	return nil
}
