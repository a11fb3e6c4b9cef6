// Package db holds the embedded SQL migrations.
package db

import "embed"

// MigrationFS embeds the migrations applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
