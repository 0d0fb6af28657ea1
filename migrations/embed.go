// Package migrations embeds the SQL schema migrations into the binary and
// registers them with the database package on import.
package migrations

import (
	"embed"

	"github.com/BrewPi/brewpi-service/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
