// Package database provides the SQLite store behind the node's diagnostic
// journal.
//
// The journal records connectivity transitions and input events for later
// inspection. It is never used to persist outbound messages; the outbound
// queue lives in memory only.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded by the migrations package and named
// YYYYMMDD_HHMMSS_description.up.sql. They are applied in version order,
// each in its own transaction, and recorded in schema_migrations.
package database
