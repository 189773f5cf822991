// Package migrations embeds the SQL schema files so the server binary is
// self-contained and does not depend on its working directory.
package migrations

import "embed"

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
