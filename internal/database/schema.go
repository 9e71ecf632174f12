package database

import _ "embed"

// Schema is the full schema produced by applying every migration. Tests load
// it directly instead of running the migrator.
//
//go:embed schema.sql
var Schema string
