package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects the schema steps; each file registers one, named after
// its timestamped file name.
var Migrations = migrate.NewMigrations()
