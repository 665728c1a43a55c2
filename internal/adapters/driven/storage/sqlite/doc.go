// Package sqlite provides the embedded record store on modernc.org/sqlite,
// a pure Go SQLite implementation that needs no CGO.
//
// A single database file holds the opportunities table and the scheduler
// tables:
//
//   - RecordStore: deduplicated opportunity records
//   - SchedulerStore: daemon task state and run history
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at <data_dir>/opportunities.db.
//
// # Thread Safety
//
// All operations are safe for concurrent use. The database runs in WAL mode
// so queries proceed while a sync merges a batch.
package sqlite
