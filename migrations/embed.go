// Package migrations holds the Postgres schema for the entry store.
package migrations

import "embed"

// FS holds the goose migrations. repo.Migrate applies them when the durable
// store is probed at startup; integration tests apply them the same way.
//
//go:embed *.sql
var FS embed.FS
