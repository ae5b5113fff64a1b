// Package database manages the SQLite connection for Latchkey Core.
//
// It wraps database/sql with the mattn/go-sqlite3 driver and provides:
//   - Connection setup with WAL mode, busy timeout, and restricted file
//     permissions
//   - Schema migrations from SQL files embedded via the migrations package
//   - Health checks for the status endpoint
//
// The controller is the database's only client, so the pool is pinned to a
// single connection; registry writes are synchronous by design (durability
// over latency — writes happen on enroll/unenroll, not on every scan).
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
