package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cfd24/hoyolab-auto/internal/cron"
)

// Store defines the persistence operations used by tasks and the scheduler.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordRun stores the outcome of one task run. It satisfies
	// cron.RunRecorder.
	RecordRun(ctx context.Context, res cron.Result) error

	// RecentRuns returns the latest runs of taskName, newest first. An empty
	// taskName returns runs of every task.
	RecentRuns(ctx context.Context, taskName string, limit int) ([]TaskRun, error)

	// PruneRuns deletes runs started before cutoff.
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)

	// ShouldNotify reports whether a notification keyed by key may be sent,
	// i.e. none was sent within ttl. A true result claims the key.
	ShouldNotify(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseNotification drops the claim on key so the next ShouldNotify
	// succeeds again. It is called when the claimed send failed.
	ReleaseNotification(ctx context.Context, key string) error

	// IsCodeRedeemed reports whether accountID already redeemed code.
	IsCodeRedeemed(ctx context.Context, accountID, code string) (bool, error)

	// MarkCodeRedeemed remembers that accountID redeemed code.
	MarkCodeRedeemed(ctx context.Context, accountID, code string) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store backed by db.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) RecordRun(ctx context.Context, res cron.Result) error {
	run := TaskRun{
		RunID:      res.RunID.String(),
		TaskName:   res.Name,
		Trigger:    string(res.Trigger),
		StartedAt:  res.Started.UTC(),
		DurationMS: res.Duration.Milliseconds(),
		Succeeded:  res.OK(),
		Skipped:    res.Skipped,
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if res.Err != nil {
		run.Error = sql.NullString{String: res.Err.Error(), Valid: true}
	}

	query := `
        INSERT INTO task_runs (run_id, task_name, run_trigger, started_at, duration_ms, succeeded, skipped, error)
        VALUES (:run_id, :task_name, :run_trigger, :started_at, :duration_ms, :succeeded, :skipped, :error);
    `
	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		s.logger.ErrorContext(ctx, "Error saving task run", "task_name", res.Name, "error", err)
		return fmt.Errorf("failed to save run of %s: %w", res.Name, err)
	}

	return nil
}

func (s *sqlxStore) RecentRuns(ctx context.Context, taskName string, limit int) ([]TaskRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var (
		runs []TaskRun
		err  error
	)
	if taskName == "" {
		err = s.db.SelectContext(ctx, &runs,
			`SELECT * FROM task_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &runs,
			`SELECT * FROM task_runs WHERE task_name = ? ORDER BY started_at DESC, id DESC LIMIT ?`, taskName, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}

	return runs, nil
}

func (s *sqlxStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM task_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune task runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned task runs: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Pruned task runs", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *sqlxStore) ShouldNotify(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("notification key must not be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	now := s.now()

	var sentAt time.Time
	err = tx.GetContext(ctx, &sentAt, `SELECT sent_at FROM notifications WHERE dedup_key = ?`, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("failed to look up notification %s: %w", key, err)
	case now.Sub(sentAt) < ttl:
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO notifications (dedup_key, sent_at) VALUES (?, ?)
        ON CONFLICT(dedup_key) DO UPDATE SET sent_at = excluded.sent_at;
    `, key, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit notification %s: %w", key, err)
	}
	return true, nil
}

func (s *sqlxStore) ReleaseNotification(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE dedup_key = ?`, key); err != nil {
		return fmt.Errorf("failed to release notification %s: %w", key, err)
	}
	return nil
}

func (s *sqlxStore) IsCodeRedeemed(ctx context.Context, accountID, code string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM redeemed_codes WHERE account_id = ? AND code = ?`, accountID, code)
	if err != nil {
		return false, fmt.Errorf("failed to look up code %s: %w", code, err)
	}
	return n > 0, nil
}

func (s *sqlxStore) MarkCodeRedeemed(ctx context.Context, accountID, code string) error {
	rc := RedeemedCode{AccountID: accountID, Code: code, RedeemedAt: s.now()}
	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO redeemed_codes (account_id, code, redeemed_at)
        VALUES (:account_id, :code, :redeemed_at)
        ON CONFLICT(account_id, code) DO NOTHING;
    `, rc)
	if err != nil {
		return fmt.Errorf("failed to mark code %s redeemed: %w", code, err)
	}
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context done before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")
	start := time.Now()

	// VACUUM must run outside a transaction
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Failed to execute VACUUM", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}
