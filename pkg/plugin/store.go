package plugin

import (
	"context"
	"database/sql"
)

// Migration is a single versioned schema change owned by one plugin.
// Migrations run inside a transaction and must be idempotent per version.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Store is the shared persistence contract handed to plugins that need it.
type Store interface {
	// DB returns the underlying database handle for direct queries.
	DB() *sql.DB

	// Tx executes fn within a transaction, committing on nil error.
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error

	// Migrate applies the plugin's pending migrations, tracked per plugin
	// name in a shared table.
	Migrate(ctx context.Context, pluginName string, migrations []Migration) error
}
