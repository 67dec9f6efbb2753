// Package list provides the list command code.
package list

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ardanlabs/llamachat/sdk/tools/models"
)

// Run executes the list command.
func Run(args []string) error {
	mdls, err := models.New("")
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	files, err := mdls.RetrieveFiles()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	printFiles(os.Stdout, files, time.Now())

	return nil
}

// =============================================================================

func printFiles(out io.Writer, files []models.File, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNED BY\tMODEL FAMILY\tSHARDS\tSIZE\tMODIFIED")

	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", f.ID, f.OwnedBy, f.ModelFamily, f.Shards, formatSize(f.Size), formatTime(now, f.Modified))
	}

	w.Flush()
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatTime(now time.Time, t time.Time) string {
	diff := now.Sub(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	default:
		return plural(int(diff.Hours()/24/30), "month")
	}
}
