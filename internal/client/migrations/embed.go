// Package migrations embeds the goose SQL migrations for the client-side
// sqlite database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
