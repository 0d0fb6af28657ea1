// Package database provides SQLite connectivity for the BrewPi service.
//
// The database holds the controller event journal. This package manages:
//   - Connection setup with WAL mode and busy timeout
//   - Embedded, additive-only schema migrations
//   - Health checks and lifecycle management
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql. New columns must be
// NULLABLE or carry a DEFAULT.
package database
