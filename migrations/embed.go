// Package migrations embeds the SQL schema migrations for the bridge.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
