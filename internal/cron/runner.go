package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
)

// Trigger tells what started a task run.
type Trigger string

// Run triggers.
const (
	TriggerScheduled Trigger = "scheduled"
	TriggerStartup   Trigger = "startup"
)

// Result is the outcome of one task invocation.
type Result struct {
	RunID    uuid.UUID
	Name     string
	Trigger  Trigger
	Started  time.Time
	Duration time.Duration
	// Err is a *errors.TaskError when the task failed.
	Err error
	// Skipped is set when the run was never attempted because the
	// context was already done.
	Skipped bool
}

// OK reports whether the task ran and succeeded.
func (r Result) OK() bool {
	return !r.Skipped && r.Err == nil
}

// RunRecorder receives every completed run, scheduled or orchestrated.
type RunRecorder interface {
	RecordRun(ctx context.Context, res Result) error
}

// Report aggregates the results of an orchestrated pass, in entry order.
type Report struct {
	Results []Result
}

// Failed returns the results of tasks that ran and failed.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Skipped && res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the results of tasks that ran and succeeded.
func (r Report) Succeeded() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Skipped returns the results of tasks that were not attempted.
func (r Report) Skipped() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Skipped {
			out = append(out, res)
		}
	}
	return out
}

// Err joins every task failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

// RunAll invokes every entry's task once, sequentially and in order. A
// failing task is logged and the pass continues; RunAll itself never fails.
// No timeout is applied: a task that never returns blocks the entries after
// it. Entries not yet started when ctx is done are reported as skipped.
func RunAll(ctx context.Context, logger *slog.Logger, entries []Entry, recorders ...RunRecorder) Report {
	if logger == nil {
		logger = slog.Default()
	}

	report := Report{Results: make([]Result, 0, len(entries))}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, Result{
				RunID:   uuid.New(),
				Name:    e.Name,
				Trigger: TriggerStartup,
				Err:     err,
				Skipped: true,
			})
			continue
		}

		logger.InfoContext(ctx, "Running task", "task_name", e.Name)
		res := invoke(ctx, e.Name, TriggerStartup, e.Task)
		if res.Err != nil {
			logger.ErrorContext(ctx, "Task failed", "task_name", e.Name, "error", failureCause(res.Err).Error(), "duration", res.Duration)
		} else {
			logger.DebugContext(ctx, "Finished task", "task_name", e.Name, "duration", res.Duration)
		}
		record(ctx, logger, recorders, res)

		report.Results = append(report.Results, res)
	}

	if skipped := len(report.Skipped()); skipped > 0 {
		logger.WarnContext(ctx, "Task run interrupted", "skipped", skipped, "error", ctx.Err())
	}
	logger.InfoContext(ctx, "Finished running tasks",
		"succeeded", len(report.Succeeded()),
		"failed", len(report.Failed()))

	return report
}

// invoke runs task, converting a returned error or a panic into a TaskError.
func invoke(ctx context.Context, name string, trigger Trigger, task TaskFunc) (res Result) {
	res = Result{
		RunID:   uuid.New(),
		Name:    name,
		Trigger: trigger,
		Started: time.Now(),
	}

	defer func() {
		if p := recover(); p != nil {
			res.Err = apperrors.NewTaskError(name, fmt.Errorf("panic: %v", p))
		}
		res.Duration = time.Since(res.Started)
	}()

	res.Err = apperrors.NewTaskError(name, task(ctx))
	return res
}

// failureCause strips the TaskError wrapper added by invoke.
func failureCause(err error) error {
	var taskErr *apperrors.TaskError
	if errors.As(err, &taskErr) && taskErr.Cause != nil {
		return taskErr.Cause
	}
	return err
}

func record(ctx context.Context, logger *slog.Logger, recorders []RunRecorder, res Result) {
	// a run finishing during shutdown is still recorded
	ctx = context.WithoutCancel(ctx)
	for _, rec := range recorders {
		if err := rec.RecordRun(ctx, res); err != nil {
			logger.WarnContext(ctx, "Failed to record task run", "task_name", res.Name, "error", err)
		}
	}
}
