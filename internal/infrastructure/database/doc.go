// Package database provides SQLite connectivity for iobridge.
//
// The bridge keeps a single small table of created peripherals so the
// registry can be rebuilt after a restart. This package owns the connection
// and the forward-only migration runner; the peripheral package owns the
// queries.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
