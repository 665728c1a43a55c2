// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RecordStore: Opportunity persistence (SQLite or PostgreSQL)
//   - Fetcher: Downloads CSV extracts from SAM.gov or a local directory
//   - ExtractReader: Streams rows out of an extract
//   - Normaliser: Maps rows to records and resolves the country
//   - SyncStateStore: Watermark and bootstrap progress persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - StatsCache: Without it, statistics are recomputed on every request.
//   - RecordPublisher: Without it, new records are not announced.
//   - RunLock: Without it, only the in-process guard rejects overlapping runs,
//     and maintenance does not wait for syncs at all.
//   - DownloadCache: Without it, optimize leaves interrupted downloads in place.
//   - SchedulerStore: Only needed by the daemon.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
