package db

import "embed"

// MigrationFS holds the accounts schema migrations applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
