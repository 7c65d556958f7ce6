package database

import (
	"database/sql"
	"time"
)

// TaskRun is one recorded task invocation, scheduled or run at startup.
type TaskRun struct {
	ID         int64          `db:"id"`
	RunID      string         `db:"run_id"`
	TaskName   string         `db:"task_name"`
	Trigger    string         `db:"run_trigger"`
	StartedAt  time.Time      `db:"started_at"`
	DurationMS int64          `db:"duration_ms"`
	Succeeded  bool           `db:"succeeded"`
	Skipped    bool           `db:"skipped"`
	Error      sql.NullString `db:"error"`
}

// Duration returns the run's wall time.
func (r TaskRun) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// RedeemedCode marks a gift code as consumed by an account.
type RedeemedCode struct {
	AccountID  string    `db:"account_id"`
	Code       string    `db:"code"`
	RedeemedAt time.Time `db:"redeemed_at"`
}
