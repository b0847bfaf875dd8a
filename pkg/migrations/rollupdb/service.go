// Package rollupdb holds all the migrations for the check-in rollup database
package rollupdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the check-in rollup database
var Migrations = migrate.NewMigrations()
