// Package database opens the bridge's SQLite file and applies the embedded
// schema migrations.
//
// One file holds the pairing store, the accessory identity, characteristic
// history and the audit trail. The pool is a single connection, so writers
// from different components queue rather than contend for the lock.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	err = db.Migrate(ctx, migrations.FS)
//
// Every .up.sql ships with a .down.sql, which MigrateDown runs for the newest
// applied version.
package database
