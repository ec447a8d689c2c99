// Package migrations embeds SQL migration files for use in tooling and tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
