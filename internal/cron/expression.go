package cron

import (
	"fmt"
	"strings"

	robfig "github.com/robfig/cron/v3"
)

// parser accepts 5 or 6 fields (seconds optional) and @descriptors,
// which is the set gocron schedules.
var parser = robfig.NewParser(
	robfig.SecondOptional | robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor,
)

// ParseExpression validates a cron expression and reports whether it
// carries a seconds field.
func ParseExpression(expr string) (withSeconds bool, err error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("empty cron expression")
	}

	if _, err := parser.Parse(expr); err != nil {
		return false, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	fields := strings.Fields(expr)
	if len(fields) > 0 && (strings.HasPrefix(fields[0], "CRON_TZ=") || strings.HasPrefix(fields[0], "TZ=")) {
		fields = fields[1:]
	}

	return len(fields) == 6, nil
}
