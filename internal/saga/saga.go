// Package saga runs a sequence of steps where each step can be undone.
// Checkout confirmation uses it: if clearing the cart fails after the order
// was persisted and the promo budget consumed, the earlier steps are
// compensated instead of leaving an order without a consistent world around
// it.
package saga

import (
	"context"
	"log/slog"
)

// Step is a single unit of work with a compensating action that undoes its
// effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator executes steps sequentially and rolls back on failure.
type Orchestrator struct {
	steps []Step
}

func NewOrchestrator(steps []Step) *Orchestrator {
	return &Orchestrator{steps: steps}
}

// Run executes the steps in order. If one fails, the previously successful
// steps are compensated in reverse (LIFO) and the step's error is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	var done []Step

	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing step", "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.WarnContext(ctx, "step failed, rolling back",
				"step", step.Name(), "error", err)
			o.rollback(ctx, done)
			return err
		}
		done = append(done, step)
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			// Nothing left to do automatically; this needs an operator.
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate step",
				"step", step.Name(), "error", err)
		}
	}
}
