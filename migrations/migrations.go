// Package migrations embeds the SQL schema migrations applied by the
// migrate binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
