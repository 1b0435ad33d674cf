package db

import "embed"

// EmbedMigrations holds the run-history metastore schema migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
