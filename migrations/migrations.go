// Package migrations embeds the versioned database schema.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the embedded directory holding the SQL files.
const Dir = "sql"

// Component namespaces the migration tracking table.
const Component = "beacon"
