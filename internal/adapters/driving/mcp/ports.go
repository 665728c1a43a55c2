package mcp

import (
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Query reads records and statistics.
	Query driving.QueryService

	// Sync reports the sync engine state. Optional.
	Sync driving.SyncService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
