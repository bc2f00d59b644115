package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
)

// runStage executes one stage in isolation. Errors and panics are recorded on
// the result and never stop the cycle.
func (o *Orchestrator) runStage(ctx context.Context, res *CycleResult, stage Stage, fn func(context.Context) error) (err error) {
	started := o.now()
	defer func() {
		if r := recover(); r != nil {
			stack, _ := errors.ParseStack(debug.Stack())
			logging.Errorw(ctx, "Cycle stage recovered from panic",
				"cycle", res.CycleID(), "stage", stage, "error", r, "error.stack_trace", stack.MinimalStack(3, 5))
			err = fmt.Errorf("panic: %v", r)
		}

		report := res.record(stage, err, o.now().Sub(started))
		o.metrics.ObserveStage(string(stage), string(report.Status))
		switch report.Status {
		case StatusOK:
			logging.Debugw(ctx, "Cycle stage complete", "cycle", res.CycleID(), "stage", stage, "duration", report.Duration)
		default:
			logging.Warnw(ctx, "Cycle stage did not complete cleanly",
				"cycle", res.CycleID(), "stage", stage, "status", report.Status, "error", err)
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("skipped: %w", ctxErr)
	}
	return fn(ctx)
}

func (o *Orchestrator) now() time.Time {
	return o.clock()
}
