// Package driving declares what the CLI and the MCP server may ask of the
// core: run a sync, read records and statistics, maintain the store, edit
// settings and run the scheduler.
//
// internal/core/services implements every interface here.
package driving
