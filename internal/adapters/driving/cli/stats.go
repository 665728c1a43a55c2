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
	statsRefresh bool
	statsJSON    bool
	statsTop     int
)

// barWidth is the width of the longest per-country bar.
const barWidth = 30

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record store statistics",
	Long: `Shows totals, recent activity, and breakdowns by country and fiscal year.
The snapshot is cached for stats.ttl; use --refresh to recompute.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsRefresh, "refresh", false, "recompute instead of using the cached snapshot")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	statsCmd.Flags().IntVar(&statsTop, "top", 15, "number of countries to list (0 = all)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	ctx := cmd.Context()
	var (
		stats *domain.Statistics
		err   error
	)
	if statsRefresh {
		stats, err = queryService.RefreshStatistics(ctx)
	} else {
		stats, err = queryService.Statistics(ctx)
	}
	if err != nil {
		return fmt.Errorf("statistics: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal statistics: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Print(renderStats(stats, statsTop))
	return nil
}

// renderStats formats a statistics snapshot for the terminal.
func renderStats(s *domain.Statistics, top int) string {
	st := newOutputStyles()
	var b strings.Builder

	row := func(label, value string) {
		b.WriteString(st.Label.Render(label) + st.Value.Render(value) + "\n")
	}

	b.WriteString(st.Title.Render("African SAM.gov Opportunities") + "\n")
	row("Total", fmt.Sprintf("%d", s.Total))
	row("Active", fmt.Sprintf("%d", s.Active))
	row("Last 7 days", fmt.Sprintf("%d", s.Last7Days))
	row("Last 30 days", fmt.Sprintf("%d", s.RecentCount))
	row("Last 365 days", fmt.Sprintf("%d", s.Last365Days))
	if !s.LatestPosted.IsZero() {
		row("Latest posted", s.LatestPosted.Format(time.DateOnly))
	}
	row("Store size", fmt.Sprintf("%.1f MB", s.SizeMB()))

	if len(s.ByCountry) > 0 {
		b.WriteString("\n" + st.Section.Render("By country") + "\n")
		countries := s.ByCountry
		if top > 0 && len(countries) > top {
			countries = countries[:top]
		}
		maxCount := countries[0].Count
		for _, c := range countries {
			width := 0
			if maxCount > 0 {
				width = max(1, c.Count*barWidth/maxCount)
			}
			fmt.Fprintf(&b, "  %-3s %-26s %7d %s\n",
				c.Code, truncate(c.Name, 26), c.Count, st.Bar.Render(strings.Repeat("█", width)))
		}
		if rest := len(s.ByCountry) - len(countries); rest > 0 {
			b.WriteString(st.Muted.Render(fmt.Sprintf("  ... and %d more", rest)) + "\n")
		}
	}

	if len(s.ByYear) > 0 {
		b.WriteString("\n" + st.Section.Render("By year posted") + "\n")
		for _, y := range s.ByYear {
			fmt.Fprintf(&b, "  %d %9d\n", y.Year, y.Count)
		}
	}

	if !s.GeneratedAt.IsZero() {
		b.WriteString("\n" + st.Muted.Render("Generated "+s.GeneratedAt.Local().Format(time.DateTime)) + "\n")
	}
	return b.String()
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
