// Package migrations embeds the SQL files that define the run history,
// notification and gift code tables.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
