package postgres

import "embed"

// MigrationFS holds the schema migrations applied by Migrate and cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
