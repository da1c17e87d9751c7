// Package migrations embeds the versioned SQL schema files applied by
// db.Migrator. Files are named NNN_description.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
