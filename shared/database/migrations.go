package database

import "embed"

// MigrationsFS содержит SQL-миграции для pkg/migration.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsPath - каталог внутри MigrationsFS.
const MigrationsPath = "migrations"
