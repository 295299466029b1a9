package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sambabib/depcheck/pkg/advisory"
	"github.com/sambabib/depcheck/pkg/engine"
)

const summaryLimit = 60 // Max characters for the summary column

// WriteTextReport prints the vulnerabilities and outdated dependencies as
// aligned tables followed by the health score.
func WriteTextReport(w io.Writer, report engine.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(report.Vulnerabilities) == 0 {
		fmt.Fprintln(tw, "No known vulnerabilities found.")
	} else {
		fmt.Fprintln(tw, "PACKAGE\tVERSION\tSEVERITY\tID\tSOURCE\tSUMMARY")
		fmt.Fprintln(tw, "-------\t-------\t--------\t--\t------\t-------")
		for _, v := range report.Vulnerabilities {
			name := v.PackageName
			if v.Dev {
				name += " (dev)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				name,
				v.Version,
				v.Finding.Severity,
				v.Finding.ID,
				v.Finding.Source,
				truncate(v.Finding.Summary, summaryLimit),
			)
		}
	}
	fmt.Fprintln(tw)

	if len(report.Staleness) == 0 {
		fmt.Fprintln(tw, "All dependencies are up to date.")
	} else {
		fmt.Fprintln(tw, "PACKAGE\tCURRENT\tLATEST\tUPDATE")
		fmt.Fprintln(tw, "-------\t-------\t------\t------")
		for _, s := range report.Staleness {
			update := "minor"
			if s.IsMajorBump {
				update = "major"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.PackageName, s.CurrentVersion, s.LatestVersion, update)
		}
	}
	fmt.Fprintln(tw)

	counts := report.CountBySeverity()
	fmt.Fprintf(tw, "Dependencies: %d  Critical: %d  High: %d  Medium: %d  Low: %d  Outdated: %d\n",
		report.Dependencies,
		counts[advisory.SeverityCritical],
		counts[advisory.SeverityHigh],
		counts[advisory.SeverityMedium],
		counts[advisory.SeverityLow],
		len(report.Staleness),
	)
	fmt.Fprintf(tw, "Health score: %d/100\n", report.HealthScore)
	if len(report.Degraded) > 0 {
		fmt.Fprintf(tw, "Incomplete: %d lookups failed (%s)\n", len(report.Degraded), strings.Join(report.Degraded, ", "))
	}

	return tw.Flush()
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\t", " ") // Replace tabs to avoid breaking alignment
	s = strings.ReplaceAll(s, "\n", " ")
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit-3]) + "..."
	}
	return s
}
