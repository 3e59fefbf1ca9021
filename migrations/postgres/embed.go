// Package postgres embeds the goose migrations for the Postgres store.
package postgres

import "embed"

//go:embed *.sql
var FS embed.FS
