// Package database provides SQLite connectivity for the device registry.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Forward-only schema migrations embedded in the binary
//   - Health checks and lifecycle management
//
// The pool is pinned to one connection. Each registry operation is a
// single statement, so operations are serialised and individually atomic.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and columns are never dropped or renamed.
package database
