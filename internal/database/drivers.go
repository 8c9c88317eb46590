package database

import (
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
)

const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

// SupportedDriver reports whether name is one of the registered Postgres drivers.
func SupportedDriver(name string) bool {
	return name == DriverPQ || name == DriverPGX
}
