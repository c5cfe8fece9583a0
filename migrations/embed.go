// Package migrations embeds the registry schema into the binary.
//
// Importing it for side effects registers the SQL files with the database
// package, so the schema travels with the executable.
package migrations

import (
	"embed"

	"github.com/nerrad567/lanregistry/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
