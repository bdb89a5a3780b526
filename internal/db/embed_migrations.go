package db

import "embed"

// MigrationFS embeds the storefront identity schema migrations.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
