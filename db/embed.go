// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema creates the catalog and offer tables. Every statement is idempotent
// so it can run on every start.
//
//go:embed migrations/001_schema.sql
var Schema string
