package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/afrisam/internal/core/domain"
)

var (
	queryCountries []string
	queryFrom      string
	queryTo        string
	queryAgency    string
	queryActive    bool
	queryLimit     int
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List stored opportunities",
	Long: `Lists opportunities from the local store, newest first.

Examples:
  afrisam query --country KEN --country NGA --active
  afrisam query --from 2024-01-01 --agency "state" --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

var getCmd = &cobra.Command{
	Use:   "get <notice-id>",
	Short: "Show one opportunity",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	queryCmd.Flags().StringSliceVarP(&queryCountries, "country", "c", nil, "alpha-3 country code (repeatable)")
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "earliest posted date (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "latest posted date (YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryAgency, "agency", "", "department name prefix (case-insensitive)")
	queryCmd.Flags().BoolVar(&queryActive, "active", false, "only active opportunities")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "maximum number of results (0 = all)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")

	getCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(queryCmd, getCmd)
}

func runQuery(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	filter, err := queryFilter()
	if err != nil {
		return err
	}

	var results []domain.Opportunity
	for opp, err := range queryService.Query(cmd.Context(), filter) {
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		results = append(results, opp)
	}

	if queryJSON {
		return outputJSON(cmd, results)
	}
	return outputQueryTable(cmd, results)
}

func queryFilter() (domain.Filter, error) {
	filter := domain.Filter{
		Agency:     queryAgency,
		ActiveOnly: queryActive,
		Limit:      queryLimit,
	}
	for _, c := range queryCountries {
		filter.Countries = append(filter.Countries, strings.ToUpper(strings.TrimSpace(c)))
	}

	var err error
	if filter.From, err = parseDateFlag("from", queryFrom); err != nil {
		return domain.Filter{}, err
	}
	if filter.To, err = parseDateFlag("to", queryTo); err != nil {
		return domain.Filter{}, err
	}
	if err := filter.Validate(); err != nil {
		return domain.Filter{}, fmt.Errorf("invalid filter: %w", err)
	}
	return filter, nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", name, value)
	}
	return t, nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryTable(cmd *cobra.Command, results []domain.Opportunity) error {
	if len(results) == 0 {
		cmd.Println("No opportunities found.")
		return nil
	}

	for i := range results {
		o := &results[i]
		state := "inactive"
		if o.Active {
			state = "active"
		}
		cmd.Printf("  %s  %-3s  %s\n", o.PostedDate.Format(time.DateOnly), o.CountryCode, truncate(o.Title, 80))
		cmd.Printf("              %s | %s | %s\n", o.ID, truncate(o.Agency, 40), state)
	}
	cmd.Printf("\n%d result(s)\n", len(results))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	opp, err := queryService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get %s: %w", args[0], err)
	}
	if queryJSON {
		return outputJSON(cmd, opp)
	}

	field := func(label, value string) {
		if value != "" {
			cmd.Printf("  %-20s %s\n", label+":", value)
		}
	}
	date := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	}

	cmd.Println(opp.Title)
	cmd.Println()
	field("Notice ID", opp.ID)
	field("Solicitation", opp.SolicitationNumber)
	field("Agency", opp.Agency)
	field("Sub-tier", opp.SubTier)
	field("Office", opp.Office)
	field("Posted", date(opp.PostedDate))
	field("Country", fmt.Sprintf("%s (%s)", opp.CountryName, opp.CountryCode))
	field("City", opp.PopCity)
	field("Type", opp.Type)
	field("Active", fmt.Sprintf("%t", opp.Active))
	field("Response deadline", date(opp.ResponseDeadline))
	field("Award", strings.TrimSpace(opp.AwardNumber+" "+opp.AwardAmount))
	field("Awardee", opp.Awardee)
	field("NAICS", opp.NAICSCode)
	field("Set-aside", opp.SetAside)
	field("Contact", strings.TrimSpace(opp.ContactName+" "+opp.ContactEmail))
	field("Link", opp.Link)
	field("Source", opp.Source)
	return nil
}
