// Package migrations embeds the goose SQL migrations of the run store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
