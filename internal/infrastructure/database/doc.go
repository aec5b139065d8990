// Package database provides SQLite connectivity for the dispatch node.
//
// The database holds the device catalogue: which protocol each device
// speaks. It is small and read-mostly, so a single SQLite file in WAL mode
// is sufficient.
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// (and .down.sql), read from any fs.FS. The migrations package embeds the
// node's own set.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
