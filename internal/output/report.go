package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/torosent/apicontract/internal/metrics"
	"github.com/torosent/apicontract/internal/result"
)

// Report is the JSON document written for a run.
type Report struct {
	result.Summary
	Latency metrics.Stats `json:"latency"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, summary result.Summary, stats metrics.Stats) {
	p := newPalette()

	fmt.Fprintln(w, "\n--- Contract Test Results ---")
	if summary.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", summary.RunID)
	}
	if summary.BaseURL != "" {
		fmt.Fprintf(w, "Base URL:          %s\n", summary.BaseURL)
	}
	fmt.Fprintf(w, "Total Cases:       %d\n", summary.Total)
	fmt.Fprintf(w, "Passed:            %s\n", p.pass(summary.Passed))
	fmt.Fprintf(w, "Failed:            %s\n", p.failCount(summary.Failed))
	fmt.Fprintf(w, "Setup Errors:      %s\n", p.failCount(summary.SetupErrors))
	if summary.Skipped > 0 {
		fmt.Fprintf(w, "Skipped:           %d\n", summary.Skipped)
	}
	fmt.Fprintf(w, "Duration:          %s\n", summary.Duration)
	fmt.Fprintf(w, "Cases/sec:         %.2f\n", stats.CasesPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Failures) > 0 {
		fmt.Fprintln(w, "\nFailure Breakdown:")
		labels := make([]string, 0, len(stats.Failures))
		for label := range stats.Failures {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if stats.Failures[labels[i]] == stats.Failures[labels[j]] {
				return labels[i] < labels[j]
			}
			return stats.Failures[labels[i]] > stats.Failures[labels[j]]
		})
		for _, label := range labels {
			fmt.Fprintf(w, "  %s: %d\n", label, stats.Failures[label])
		}
	}

	if len(stats.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nUnexpected Statuses:")
		writeStatusBuckets(w, stats.StatusBuckets, "  ")
	}

	failures := summary.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailures:")
	for _, r := range failures {
		fmt.Fprintf(w, "  %s %s\n", p.label(r), r.Case)
		if r.Outcome == result.Failed && r.Kind == result.KindAssertionFailure {
			for _, m := range r.Mismatches {
				fmt.Fprintf(w, "      - %s\n", m)
			}
		} else {
			fmt.Fprintf(w, "      %s\n", r.Detail())
		}
		if r.Curl != "" {
			fmt.Fprintf(w, "      reproduce: %s\n", r.Curl)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, summary result.Summary, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{Summary: summary, Latency: stats})
}

func writeStatusBuckets(w io.Writer, rows []metrics.StatusBucket, indent string) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(
			w,
			"%s%s %s: %d\n",
			indent,
			strings.ToUpper(row.Method),
			row.Code,
			row.Count,
		)
	}
}

// palette wraps the console colors. fatih/color disables itself when stdout
// is not a terminal or color.NoColor is set.
type palette struct {
	green  *color.Color
	red    *color.Color
	yellow *color.Color
}

func newPalette() palette {
	return palette{
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow),
	}
}

func (p palette) pass(n int) string {
	return p.green.Sprint(n)
}

func (p palette) failCount(n int) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return p.red.Sprint(n)
}

func (p palette) label(r result.TestResult) string {
	switch r.Outcome {
	case result.Passed:
		return p.green.Sprint("PASS")
	case result.SetupError:
		return p.yellow.Sprint("SETUP")
	default:
		return p.red.Sprint("FAIL")
	}
}
