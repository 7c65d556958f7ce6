package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cfd24/hoyolab-auto/internal/config"
	apperrors "github.com/cfd24/hoyolab-auto/internal/errors"
	"github.com/cfd24/hoyolab-auto/internal/logger"
)

// Binding is a filtered definition with its effective expression resolved.
type Binding struct {
	Name        string
	Identifier  string
	Expression  string
	WithSeconds bool
	Task        TaskFunc
}

// Plan filters defs and resolves every effective expression without
// touching any scheduler. It fails on the first conflicting filter or
// invalid expression, so a failed plan never leaves a partial registry.
func Plan(defs []Definition, cfg config.CronConfig) ([]Binding, error) {
	if err := ValidateDefinitions(defs); err != nil {
		return nil, apperrors.NewConfigError(apperrors.Validation, "", err)
	}

	active, err := ApplyFilter(defs, cfg.Blacklist, cfg.Whitelist)
	if err != nil {
		return nil, err
	}

	bindings := make([]Binding, 0, len(active))
	for _, d := range active {
		name := d.Name()
		expr := d.Expression
		if override, ok := cfg.Schedule(name); ok {
			expr = override
		}

		withSeconds, err := ParseExpression(expr)
		if err != nil {
			return nil, apperrors.NewConfigError(apperrors.InvalidSchedule, name, err)
		}

		bindings = append(bindings, Binding{
			Name:        name,
			Identifier:  d.Identifier,
			Expression:  expr,
			WithSeconds: withSeconds,
			Task:        d.Task,
		})
	}

	return bindings, nil
}

// Entry is a task bound to a running trigger.
type Entry struct {
	Name       string
	Identifier string
	Expression string
	Task       TaskFunc

	job gocron.Job
}

// NextRun returns the next time the entry's trigger fires.
func (e Entry) NextRun() (time.Time, error) {
	if e.job == nil {
		return time.Time{}, fmt.Errorf("entry %s has no trigger", e.Name)
	}
	return e.job.NextRun()
}

// Option configures a Registry.
type Option func(*Registry)

// WithRecorder adds a recorder notified after every run.
func WithRecorder(rec RunRecorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorders = append(r.recorders, rec)
		}
	}
}

// WithBaseContext sets the context handed to scheduled task runs.
// It defaults to context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(r *Registry) {
		r.baseCtx = ctx
	}
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) {
		r.location = loc
	}
}

// Registry owns the scheduler and the entries built from the definitions.
// Entries are replaced as a whole by Build and read-only otherwise.
type Registry struct {
	mu        sync.RWMutex
	scheduler gocron.Scheduler
	newJob    func(gocron.JobDefinition, gocron.Task, ...gocron.JobOption) (gocron.Job, error)
	closed    bool
	logger    *slog.Logger
	baseCtx   context.Context
	location  *time.Location
	recorders []RunRecorder
	entries   []Entry
}

// NewRegistry creates a registry and starts its scheduler. Jobs added by
// Build begin firing immediately.
func NewRegistry(log *slog.Logger, opts ...Option) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}

	r := &Registry{
		logger:   log.With("component", "cron"),
		baseCtx:  context.Background(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(r.location),
		gocron.WithLogger(logger.NewGocronLogger(log)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.Start()
	r.scheduler = s
	r.newJob = s.NewJob

	return r, nil
}

// ErrRegistryClosed is returned by Build after Shutdown.
var ErrRegistryClosed = errors.New("cron registry is shut down")

// Build replaces the registry's entries with triggers for the active
// definitions. Filters and expressions are validated first; on a
// ConfigError the current entries are left running untouched. The new
// triggers are all created before the previous ones are removed, so a
// failure while creating them removes only the new ones and the previous
// entries keep running.
func (r *Registry) Build(defs []Definition, cfg config.CronConfig) ([]Entry, error) {
	bindings, err := Plan(defs, cfg)
	if err != nil {
		r.logger.Error("Failed to build cron registry", "error", err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	entries := make([]Entry, 0, len(bindings))
	for _, b := range bindings {
		entry := Entry{
			Name:       b.Name,
			Identifier: b.Identifier,
			Expression: b.Expression,
			Task:       b.Task,
		}

		job, err := r.newJob(
			gocron.CronJob(b.Expression, b.WithSeconds),
			gocron.NewTask(r.fire, entry),
			gocron.WithName(b.Name),
			gocron.WithTags(b.Identifier),
		)
		if err != nil {
			r.removeLocked(entries)
			r.logger.Error("Failed to schedule task", "task_name", b.Name, "schedule", b.Expression, "error", err)
			return nil, apperrors.NewConfigError(apperrors.InvalidSchedule, b.Name, err)
		}
		entry.job = job
		entries = append(entries, entry)

		logAttrs := []any{"task_name", b.Name, "schedule", b.Expression}
		if next, err := job.NextRun(); err == nil && !next.IsZero() {
			logAttrs = append(logAttrs, "next_run", next.Format(time.RFC3339))
		}
		r.logger.Debug("Scheduled task", logAttrs...)
	}

	if len(r.entries) > 0 {
		r.logger.Info("Stopping previous cron jobs", "count", len(r.entries))
		r.removeLocked(r.entries)
	}

	r.entries = entries
	r.logger.Info("Initialized cron jobs", "count", len(entries))

	return r.snapshotLocked(), nil
}

// Entries returns a copy of the current entries in registry order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// RunAll runs every current entry once, in order. See RunAll.
func (r *Registry) RunAll(ctx context.Context) Report {
	return RunAll(ctx, r.logger, r.Entries(), r.recorders...)
}

// Shutdown stops the scheduler, waiting for running jobs to complete.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.logger.Debug("Stopping scheduler", "active_jobs", len(r.scheduler.Jobs()))
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	r.entries = nil
	r.logger.Info("Scheduler stopped")

	return nil
}

// fire is the callback bound to every trigger.
func (r *Registry) fire(e Entry) {
	ctx := r.baseCtx
	r.logger.InfoContext(ctx, "Running scheduled task", "task_name", e.Name)

	res := invoke(ctx, e.Name, TriggerScheduled, e.Task)
	if res.Err != nil {
		r.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", e.Name, "error", res.Err, "duration", res.Duration)
	} else {
		r.logger.InfoContext(ctx, "Finished scheduled task", "task_name", e.Name, "duration", res.Duration)
	}
	record(ctx, r.logger, r.recorders, res)
}

func (r *Registry) removeLocked(entries []Entry) {
	for _, e := range entries {
		if e.job == nil {
			continue
		}
		if err := r.scheduler.RemoveJob(e.job.ID()); err != nil {
			r.logger.Warn("Failed to remove cron job", "task_name", e.Name, "error", err)
		}
	}
}

func (r *Registry) snapshotLocked() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
