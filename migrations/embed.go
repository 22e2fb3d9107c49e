// Package migrations embeds the shared database schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
