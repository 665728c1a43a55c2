package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driving"
)

// progressInterval is how often a running sync is polled for status.
var progressInterval = 500 * time.Millisecond

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runWithProgress runs fn while displaying a single updating status line.
// The line is only drawn on a terminal; redirected output gets the final
// report alone.
func runWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	sync driving.SyncService,
	fn func(ctx context.Context) (*domain.SyncReport, error),
) (*domain.SyncReport, error) {
	type result struct {
		report *domain.SyncReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := fn(ctx)
		done <- result{report, err}
	}()

	out := cmd.OutOrStdout()
	interactive := isTerminal(out)

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	drawn := false
	for {
		select {
		case res := <-done:
			if drawn {
				fmt.Fprintln(out)
			}
			return res.report, res.err
		case <-ticker.C:
			if !interactive {
				continue
			}
			// Best effort; a failed status read just skips a frame.
			status, err := sync.Status(ctx)
			if err != nil || status == nil || !status.Running() {
				continue
			}
			fmt.Fprintf(out, "\r%-10s %-8s rows %-9d new %-8d updated %-8d discarded %-6d",
				status.Phase, status.Segment, status.RowsRead, status.Inserted, status.Updated, status.Discarded)
			drawn = true
		}
	}
}

// printReport writes a human-readable run summary.
func printReport(cmd *cobra.Command, r *domain.SyncReport) {
	if r == nil {
		return
	}
	if r.SkippedRecent {
		cmd.Printf("Skipped: last sync at %s is within the minimum interval (use --force to override).\n",
			r.WatermarkBefore.SyncedAt.Local().Format(time.DateTime))
		return
	}

	cmd.Printf("Run %s (%s) finished in %s\n", r.RunID, r.Mode, r.Duration.Round(time.Millisecond))
	if r.Empty {
		cmd.Println("  No new data upstream.")
	}
	if len(r.Segments) > 0 {
		cmd.Printf("  Segments:  %v\n", r.Segments)
	}
	if len(r.Skipped) > 0 {
		cmd.Printf("  Skipped:   %v (not published upstream)\n", r.Skipped)
	}
	cmd.Printf("  Rows read: %d\n", r.RowsRead)
	cmd.Printf("  Inserted:  %d\n", r.Inserted)
	cmd.Printf("  Updated:   %d\n", r.Updated)
	cmd.Printf("  Unchanged: %d\n", r.Unchanged)
	if n := r.DiscardedTotal(); n > 0 {
		cmd.Printf("  Discarded: %d\n", n)
		reasons := make([]string, 0, len(r.Discarded))
		for reason := range r.Discarded {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			cmd.Printf("    %-22s %d\n", reason, r.Discarded[reason])
		}
	}
	if r.Mode != domain.SyncModeImport {
		cmd.Printf("  Watermark: %s\n", formatWatermark(r.WatermarkAfter))
	}
}

func formatWatermark(w domain.Watermark) string {
	if w.IsZero() {
		return "none"
	}
	latest := "-"
	if !w.LatestPosted.IsZero() {
		latest = w.LatestPosted.Format(time.DateOnly)
	}
	return fmt.Sprintf("synced %s, latest posted %s, %d records seen",
		w.SyncedAt.Local().Format(time.DateTime), latest, w.RecordsSeen)
}
