package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// QueryInput is the input schema for the query_opportunities tool.
type QueryInput struct {
	Countries  []string `json:"countries,omitempty" jsonschema:"ISO 3166-1 alpha-3 country codes, e.g. KEN, NGA"`
	From       string   `json:"from,omitempty" jsonschema:"earliest posted date, YYYY-MM-DD"`
	To         string   `json:"to,omitempty" jsonschema:"latest posted date, YYYY-MM-DD"`
	Agency     string   `json:"agency,omitempty" jsonschema:"case-insensitive prefix of the department name"`
	ActiveOnly bool     `json:"active_only,omitempty" jsonschema:"only return active opportunities"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results (default 50, max 500)"`
}

// QueryOutput is the output schema for the query_opportunities tool.
type QueryOutput struct {
	Opportunities []OpportunityOutput `json:"opportunities"`
	Count         int                 `json:"count"`
}

// OpportunityOutput is the wire form of a single record.
type OpportunityOutput struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	SolicitationNumber string `json:"solicitation_number,omitempty"`
	Agency             string `json:"agency,omitempty"`
	Office             string `json:"office,omitempty"`
	PostedDate         string `json:"posted_date"`
	CountryCode        string `json:"country_code"`
	CountryName        string `json:"country_name"`
	Type               string `json:"type,omitempty"`
	Active             bool   `json:"active"`
	ResponseDeadline   string `json:"response_deadline,omitempty"`
	NAICSCode          string `json:"naics_code,omitempty"`
	SetAside           string `json:"set_aside,omitempty"`
	Link               string `json:"link,omitempty"`
}

// GetInput is the input schema for the get_opportunity tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"the notice ID of the opportunity"`
}

// StatisticsInput is the input schema for the get_statistics tool.
type StatisticsInput struct {
	Refresh bool `json:"refresh,omitempty" jsonschema:"recompute instead of using the cached snapshot"`
}

// StatisticsOutput is the output schema for the get_statistics tool.
type StatisticsOutput struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	Last7Days    int            `json:"last_7_days"`
	Last30Days   int            `json:"last_30_days"`
	Last365Days  int            `json:"last_365_days"`
	SizeMB       float64        `json:"size_mb"`
	LatestPosted string         `json:"latest_posted,omitempty"`
	ByCountry    []CountryEntry `json:"by_country"`
	ByYear       map[int]int    `json:"by_year"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// CountryEntry is one row of the per-country breakdown.
type CountryEntry struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StatusInput is the (empty) input schema for the sync_status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the sync_status tool.
type StatusOutput struct {
	Phase            string    `json:"phase"`
	Mode             string    `json:"mode,omitempty"`
	RunID            string    `json:"run_id,omitempty"`
	Segment          string    `json:"segment,omitempty"`
	RowsRead         int       `json:"rows_read"`
	Inserted         int       `json:"inserted"`
	Updated          int       `json:"updated"`
	LastSync         time.Time `json:"last_sync,omitzero"`
	LatestPosted     string    `json:"latest_posted,omitempty"`
	RecordsSeen      int64     `json:"records_seen"`
	BootstrapPending bool      `json:"bootstrap_pending"`
	LastError        string    `json:"last_error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_opportunities",
		Description: "List SAM.gov contract opportunities performed in African countries",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_opportunity",
		Description: "Fetch one contract opportunity by notice ID",
	}, s.handleGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_statistics",
		Description: "Summary counts by country, year and recency",
	}, s.handleStatistics)

	if s.ports.Sync != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "sync_status",
			Description: "Current sync phase, watermark and bootstrap progress",
		}, s.handleStatus)
	}
}

// handleQuery handles the query_opportunities tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	filter, err := input.filter()
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{Opportunities: []OpportunityOutput{}}
	for opp, err := range s.ports.Query.Query(ctx, filter) {
		if err != nil {
			return nil, QueryOutput{}, fmt.Errorf("querying opportunities: %w", err)
		}
		output.Opportunities = append(output.Opportunities, toOpportunityOutput(&opp))
	}
	output.Count = len(output.Opportunities)

	return nil, output, nil
}

// handleGet handles the get_opportunity tool invocation.
func (s *Server) handleGet(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetInput,
) (*mcp.CallToolResult, OpportunityOutput, error) {
	opp, err := s.ports.Query.Get(ctx, strings.TrimSpace(input.ID))
	if err != nil {
		return nil, OpportunityOutput{}, err
	}
	return nil, toOpportunityOutput(opp), nil
}

// handleStatistics handles the get_statistics tool invocation.
func (s *Server) handleStatistics(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatisticsInput,
) (*mcp.CallToolResult, StatisticsOutput, error) {
	var (
		stats *domain.Statistics
		err   error
	)
	if input.Refresh {
		stats, err = s.ports.Query.RefreshStatistics(ctx)
	} else {
		stats, err = s.ports.Query.Statistics(ctx)
	}
	if err != nil {
		return nil, StatisticsOutput{}, fmt.Errorf("computing statistics: %w", err)
	}
	return nil, toStatisticsOutput(stats), nil
}

// handleStatus handles the sync_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.ports.Sync.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("reading sync status: %w", err)
	}

	out := StatusOutput{
		Phase:            string(status.Phase),
		Mode:             string(status.Mode),
		RunID:            status.RunID,
		Segment:          status.Segment,
		RowsRead:         status.RowsRead,
		Inserted:         status.Inserted,
		Updated:          status.Updated,
		LastSync:         status.Watermark.SyncedAt,
		LatestPosted:     formatDate(status.Watermark.LatestPosted),
		RecordsSeen:      status.Watermark.RecordsSeen,
		BootstrapPending: status.Bootstrap != nil,
		LastError:        status.LastError,
	}
	return nil, out, nil
}

// filter converts tool input into a domain filter.
func (in QueryInput) filter() (domain.Filter, error) {
	f := domain.Filter{
		Agency:     strings.TrimSpace(in.Agency),
		ActiveOnly: in.ActiveOnly,
		Limit:      in.Limit,
	}
	if f.Limit <= 0 {
		f.Limit = defaultQueryLimit
	}
	if f.Limit > maxQueryLimit {
		f.Limit = maxQueryLimit
	}
	for _, c := range in.Countries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			f.Countries = append(f.Countries, c)
		}
	}

	var err error
	if f.From, err = parseDate("from", in.From); err != nil {
		return domain.Filter{}, err
	}
	if f.To, err = parseDate("to", in.To); err != nil {
		return domain.Filter{}, err
	}
	if err := f.Validate(); err != nil {
		return domain.Filter{}, fmt.Errorf("invalid filter: %w", err)
	}
	return f, nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD: %w", field, domain.ErrInvalidInput)
	}
	return t, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func toOpportunityOutput(o *domain.Opportunity) OpportunityOutput {
	return OpportunityOutput{
		ID:                 o.ID,
		Title:              o.Title,
		SolicitationNumber: o.SolicitationNumber,
		Agency:             o.Agency,
		Office:             o.Office,
		PostedDate:         formatDate(o.PostedDate),
		CountryCode:        o.CountryCode,
		CountryName:        o.CountryName,
		Type:               o.Type,
		Active:             o.Active,
		ResponseDeadline:   formatDate(o.ResponseDeadline),
		NAICSCode:          o.NAICSCode,
		SetAside:           o.SetAside,
		Link:               o.Link,
	}
}

func toStatisticsOutput(s *domain.Statistics) StatisticsOutput {
	out := StatisticsOutput{
		Total:        s.Total,
		Active:       s.Active,
		Last7Days:    s.Last7Days,
		Last30Days:   s.RecentCount,
		Last365Days:  s.Last365Days,
		SizeMB:       s.SizeMB(),
		LatestPosted: formatDate(s.LatestPosted),
		ByCountry:    make([]CountryEntry, len(s.ByCountry)),
		ByYear:       make(map[int]int, len(s.ByYear)),
		GeneratedAt:  s.GeneratedAt,
	}
	for i, c := range s.ByCountry {
		out.ByCountry[i] = CountryEntry{Code: c.Code, Name: c.Name, Count: c.Count}
	}
	for _, y := range s.ByYear {
		out.ByYear[y.Year] = y.Count
	}
	return out
}
