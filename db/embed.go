// Package db embeds the PostgreSQL schema of the ledger store.
package db

import _ "embed"

// Schema creates the user, catalog, till and transaction tables. Every
// statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
