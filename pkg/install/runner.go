package install

import (
	"context"
	"time"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/logging"
)

// Step is one unit of the installation sequence. ShouldSkip is
// re-evaluated on every run; no "already installed" state survives a
// process. Rollback is best-effort and may be a no-op for side effects
// not worth undoing.
type Step interface {
	Name() string
	ShouldSkip(run *Context) bool
	Apply(ctx context.Context, run *Context) error
	Rollback(ctx context.Context, run *Context) error
}

// Steps returns the declared execution order for a full run
func Steps() []Step {
	return []Step{
		&migrateStep{},
		&filesStep{},
		&configsStep{},
		&environmentStep{},
		&dependenciesStep{},
		&buildStep{},
		&statuslineStep{},
		&shellStep{},
	}
}

// Runner executes steps in order and unwinds on fatal failure
type Runner struct{}

// NewRunner creates a step runner
func NewRunner() *Runner {
	return &Runner{}
}

// Run applies each step in order. On failure it rolls back every
// previously completed step in reverse completion order and returns the
// failing step's error.
func (r *Runner) Run(ctx context.Context, run *Context, steps []Step) error {
	logger := logging.GetLogger("install.runner")

	var completed []Step
	for _, step := range steps {
		if step.ShouldSkip(run) {
			logger.Debug().Str("step", step.Name()).Msg("Step skipped")
			continue
		}

		logger.Debug().Str("step", step.Name()).Msg("Step started")
		start := time.Now()
		if err := step.Apply(ctx, run); err != nil {
			logger.Error().Err(err).Str("step", step.Name()).Msg("Step failed, rolling back")
			r.rollback(ctx, run, completed)
			return errors.Wrapf(err, errors.ErrStepFailed, "step %s failed", step.Name())
		}
		logging.LogDuration(start, "step "+step.Name())

		completed = append(completed, step)
	}
	return nil
}

func (r *Runner) rollback(ctx context.Context, run *Context, completed []Step) {
	logger := logging.GetLogger("install.runner")

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if err := step.Rollback(ctx, run); err != nil {
			logger.Warn().Err(err).Str("step", step.Name()).Msg("Rollback failed")
		}
	}
}
