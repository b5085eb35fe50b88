package pgstore

import "embed"

// Migrations holds the goose schema for both tables. Pass it to pg.Migrate with MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const MigrationsDir = "migrations"

// Tables lists the tables created by Migrations, for use with pg.Healthcheck.
var Tables = []string{"two_factor_credentials", "two_factor_attempts"}
