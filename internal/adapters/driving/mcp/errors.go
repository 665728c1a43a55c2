// Package mcp provides an MCP (Model Context Protocol) server adapter for afrisam.
// It exposes the read-only query interface and the sync status to AI
// assistants and dashboards that speak MCP.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
