// Package migrations embeds the versioned SQL schema for the relational store.
package migrations

import "embed"

// FS holds the embedded migration files, named NNN_description.{up,down}.sql.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory passed to the migrator's loader.
const Dir = "."
