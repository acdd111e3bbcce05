// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

// FS holds the .up.sql migration files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
