// Package migrations embeds the SQL schema migrations for the cache database.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
