package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for afrisam resources.
	uriScheme = "afrisam://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "statistics",
		Name:        "statistics",
		Description: "Record store statistics snapshot",
		MIMEType:    "application/json",
	}, s.handleStatisticsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "opportunities/{id}",
		Name:        "opportunity",
		Description: "A single contract opportunity",
		MIMEType:    "application/json",
	}, s.handleOpportunityResource)
}

// handleStatisticsResource returns the cached statistics snapshot.
func (s *Server) handleStatisticsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Query.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}
	return jsonResource(req.Params.URI, toStatisticsOutput(stats))
}

// handleOpportunityResource returns one record by ID.
func (s *Server) handleOpportunityResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractOpportunityID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	opp, err := s.ports.Query.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting opportunity: %w", err)
	}
	return jsonResource(req.Params.URI, toOpportunityOutput(opp))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractOpportunityID extracts the ID from a URI like afrisam://opportunities/{id}.
func extractOpportunityID(uri string) string {
	const prefix = uriScheme + "opportunities/"

	id, ok := strings.CutPrefix(uri, prefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
