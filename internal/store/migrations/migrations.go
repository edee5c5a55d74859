// Package migrations embeds the goose SQL migration set for the
// State Store, grounded on gophkeeper's client-side
// internal/client/migrations package.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
