package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"trafficslice/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// outputStructured writes data as JSON or YAML when either flag is set and
// reports whether it did.
func outputStructured(cmd *cobra.Command, data interface{}) (bool, error) {
	switch {
	case outputJSON:
		return true, outputAsJSON(cmd.OutOrStdout(), data)
	case outputYAML:
		return true, outputAsYAML(cmd.OutOrStdout(), data)
	default:
		return false, nil
	}
}

// outputAsJSON outputs data as indented JSON.
func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// outputAsYAML outputs data as YAML.
func outputAsYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// renderAlertsTable displays alerts in a formatted table
func renderAlertsTable(w io.Writer, alerts []core.Alert, filter *core.AlertFilter) {
	if len(alerts) == 0 {
		warningColor.Fprintln(w, "No alerts match the filter")
		return
	}

	headerColor.Fprintln(w, "ALERTS")
	headerColor.Fprintln(w, strings.Repeat("=", 130))
	fmt.Fprintf(w, "%-22s %-4s %-26s %-16s %-26s %-14s %s\n",
		"Timestamp", "Sev", "Alert", "Application", "Destination", "Type", "Message")
	fmt.Fprintln(w, strings.Repeat("-", 130))

	for _, a := range alerts {
		fmt.Fprintf(w, "%-22s %-4s %-26s %-16s %-26s %-14s %s\n",
			truncate(a.Timestamp, 22),
			formatSeverity(a.Severity),
			truncate(a.AlertName, 26),
			truncate(a.ApplicationFrom, 16),
			truncate(a.DestinationDomain, 26),
			truncate(a.Type, 14),
			truncate(a.Message, 40))
	}

	fmt.Fprintln(w, strings.Repeat("=", 130))
	if !quiet {
		infoColor.Fprintf(w, "%d alerts (offset %d, ordered by %s %s)\n",
			len(alerts), filter.Offset, filter.OrderBy, filter.Order)
	}
}

// renderDataPointsTable displays analytics buckets in a formatted table
func renderDataPointsTable(w io.Writer, points []core.AnalyticsDataPoint, filter *core.AnalyticsFilter) {
	if len(points) == 0 {
		warningColor.Fprintln(w, "No alerts match the filter")
		return
	}

	dimension := "Dimension"
	if !filter.DimensionGroupBy.IsNone() {
		dimension = string(filter.DimensionGroupBy)
	}

	headerColor.Fprintf(w, "ALERTS BY %s\n", strings.ToUpper(string(filter.TimeGroupBy)))
	headerColor.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "%-18s %-36s %10s\n", "Time", dimension, "Count")
	fmt.Fprintln(w, strings.Repeat("-", 70))

	for _, p := range points {
		fmt.Fprintf(w, "%-18s %-36s %10d\n", p.TimeKey, truncate(formatDimension(p.DimensionKey), 36), p.Count)
	}

	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "%-18s %-36s %10d\n", "Total", "", core.SumCounts(points))
}

// renderList displays a single-column list of values
func renderList(w io.Writer, title string, values []string) {
	if len(values) == 0 {
		warningColor.Fprintf(w, "No %s found\n", strings.ToLower(title))
		return
	}
	headerColor.Fprintln(w, title)
	headerColor.Fprintln(w, strings.Repeat("=", 40))
	for _, v := range values {
		fmt.Fprintln(w, v)
	}
}

// formatSeverity returns the severity colored by urgency
func formatSeverity(severity int) string {
	s := fmt.Sprintf("%-4d", severity)
	switch {
	case severity >= 5:
		return color.New(color.FgRed, color.Bold).Sprint(s)
	case severity == 4:
		return color.New(color.FgRed).Sprint(s)
	case severity == 3:
		return color.New(color.FgYellow).Sprint(s)
	default:
		return s
	}
}

func formatDimension(key *string) string {
	if key == nil {
		return "-"
	}
	return *key
}

// truncate shortens s to at most n runes, marking the cut with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
