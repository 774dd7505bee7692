// Package database provides the SQLite database behind the sync history.
//
// It opens the database with WAL mode and a busy timeout, and applies
// embedded, versioned migrations (YYYYMMDD_HHMMSS_name.up.sql with an
// optional .down.sql). The SQL files live in the top-level migrations
// package, which registers them through MigrationsFS on import.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
