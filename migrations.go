package arena

import "embed"

//go:embed data/sql/migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir is the path of the migration scripts inside MigrationsFS.
const MigrationsDir = "data/sql/migrations"

// GetMigrationsFS returns the embedded migration scripts for this package.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
