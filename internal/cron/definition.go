// Package cron binds task definitions to cron triggers and runs them.
//
// A Registry filters the static definition set through the configured
// blacklist or whitelist, resolves each task's schedule (config override or
// default), and starts one gocron job per task. The same entries can be
// walked once, in order, with RunAll.
package cron

import (
	"context"
	"fmt"

	"github.com/cfd24/hoyolab-auto/internal/util"
)

// TaskFunc is the body of a task. It completes with nil on success.
// The context is cancelled when the process shuts down.
type TaskFunc func(ctx context.Context) error

// Definition is the static descriptor of a periodic task.
type Definition struct {
	// Identifier is unique and word-separated, e.g. "dailies-reminder".
	Identifier string
	// Expression is the default cron expression (seconds optional).
	Expression string
	Task       TaskFunc
}

// Name returns the mapped (camel-case) name used for configuration lookups
// and logging.
func (d Definition) Name() string {
	return util.ToCamel(d.Identifier)
}

// ValidateDefinitions checks that every definition is complete and that
// identifiers are unique.
func ValidateDefinitions(defs []Definition) error {
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		if d.Identifier == "" {
			return fmt.Errorf("definition %d has an empty identifier", i)
		}
		if d.Task == nil {
			return fmt.Errorf("definition %q has no task", d.Identifier)
		}
		if d.Expression == "" {
			return fmt.Errorf("definition %q has no default expression", d.Identifier)
		}
		if _, dup := seen[d.Identifier]; dup {
			return fmt.Errorf("duplicate definition %q", d.Identifier)
		}
		seen[d.Identifier] = struct{}{}
	}

	return nil
}
