package output

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/torosent/apicontract/internal/metrics"
	"github.com/torosent/apicontract/internal/result"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt   string
	Summary       result.Summary
	Stats         metrics.Stats
	FailureLabels []string
	Flaky         []FlakyCase
}

// FlakyCase is a case whose recent runs disagree.
type FlakyCase struct {
	Name   string
	Passed int
	Failed int
}

// GenerateHTMLReport generates a standalone HTML report.
func GenerateHTMLReport(w io.Writer, summary result.Summary, stats metrics.Stats, flaky []FlakyCase) error {
	labels := make([]string, 0, len(stats.Failures))
	for label := range stats.Failures {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return stats.Failures[labels[i]] > stats.Failures[labels[j]]
	})

	data := HTMLReportData{
		GeneratedAt:   time.Now().Format(time.RFC3339),
		Summary:       summary,
		Stats:         stats,
		FailureLabels: labels,
		Flaky:         flaky,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"badge": func(o result.Outcome) string {
			switch o {
			case result.Passed:
				return "badge-success"
			case result.SetupError:
				return "badge-warning"
			default:
				return "badge-error"
			}
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>API Contract Test Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f6f8;
            color: #1f2933;
            line-height: 1.5;
            padding: 24px;
        }
        .container { max-width: 1280px; margin: 0 auto; background: white; border-radius: 6px; overflow: hidden; }
        header { background: #243b53; color: white; padding: 24px 32px; }
        header h1 { font-size: 1.6rem; }
        header .meta { opacity: 0.85; font-size: 0.85rem; }
        .content { padding: 32px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 16px; margin-bottom: 32px; }
        .card { background: #f8f9fa; border-radius: 6px; padding: 16px; border-left: 4px solid #486581; }
        .card h3 { font-size: 0.8rem; color: #627d98; text-transform: uppercase; }
        .card .value { font-size: 1.8rem; font-weight: bold; }
        .card .subvalue { font-size: 0.8rem; color: #627d98; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .card.warning { border-left-color: #f59e0b; }
        .section { margin-bottom: 32px; }
        .section h2 { font-size: 1.3rem; margin-bottom: 12px; border-bottom: 2px solid #e5e7eb; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #e5e7eb; vertical-align: top; font-size: 0.9rem; }
        th { background: #f8f9fa; color: #486581; text-transform: uppercase; font-size: 0.8rem; }
        .badge { display: inline-block; padding: 2px 10px; border-radius: 10px; font-size: 0.8rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .badge-warning { background: #fef3c7; color: #92400e; }
        code { font-size: 0.8rem; word-break: break-all; }
        ul.detail { margin-left: 18px; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>API Contract Test Report</h1>
            {{if .Summary.BaseURL}}<div class="meta">Base URL: {{.Summary.BaseURL}}</div>{{end}}
            <div class="meta">Run: {{.Summary.RunID}} | Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Summary.Duration}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Total Cases</h3>
                    <div class="value">{{.Summary.Total}}</div>
                    {{if .Summary.Skipped}}<div class="subvalue">{{.Summary.Skipped}} skipped</div>{{end}}
                </div>
                <div class="card success">
                    <h3>Passed</h3>
                    <div class="value">{{.Summary.Passed}}</div>
                    <div class="subvalue">{{formatPercent .Summary.Passed .Summary.Total}}%</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Summary.Failed}}</div>
                    <div class="subvalue">{{formatPercent .Summary.Failed .Summary.Total}}%</div>
                </div>
                <div class="card warning">
                    <h3>Setup Errors</h3>
                    <div class="value">{{.Summary.SetupErrors}}</div>
                </div>
            </div>

            <div class="section">
                <h2>Latency</h2>
                <table>
                    <thead><tr><th>Min</th><th>Mean</th><th>P50</th><th>P90</th><th>P99</th><th>Max</th><th>Cases/sec</th></tr></thead>
                    <tbody><tr>
                        <td>{{formatDuration .Stats.MinLatency}}</td>
                        <td>{{formatDuration .Stats.MeanLatency}}</td>
                        <td>{{formatDuration .Stats.P50Latency}}</td>
                        <td>{{formatDuration .Stats.P90Latency}}</td>
                        <td>{{formatDuration .Stats.P99Latency}}</td>
                        <td>{{formatDuration .Stats.MaxLatency}}</td>
                        <td>{{formatFloat .Stats.CasesPerSec}}</td>
                    </tr></tbody>
                </table>
            </div>

            {{if .FailureLabels}}
            <div class="section">
                <h2>Failure Breakdown</h2>
                <table>
                    <thead><tr><th>Reason</th><th>Cases</th></tr></thead>
                    <tbody>
                        {{range .FailureLabels}}
                        <tr><td>{{.}}</td><td>{{index $.Stats.Failures .}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <div class="section">
                <h2>Cases</h2>
                <table>
                    <thead><tr><th>Case</th><th>Request</th><th>Outcome</th><th>Status</th><th>Duration</th><th>Detail</th></tr></thead>
                    <tbody>
                        {{range .Summary.Results}}
                        <tr>
                            <td><strong>{{.Case}}</strong>{{range .Tags}} <span class="badge">{{.}}</span>{{end}}</td>
                            <td><code>{{.Method}} {{.Path}}</code></td>
                            <td><span class="badge {{badge .Outcome}}">{{.Outcome}}</span>{{if .Kind}} {{.Kind}}{{end}}</td>
                            <td>{{if .Status}}{{.Status}}{{else}}-{{end}}</td>
                            <td>{{formatDuration .Duration}}</td>
                            <td>
                                {{if .Mismatches}}<ul class="detail">{{range .Mismatches}}<li>{{.String}}</li>{{end}}</ul>
                                {{else}}{{.Detail}}{{end}}
                                {{if .Curl}}<div><code>{{.Curl}}</code></div>{{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            {{if .Flaky}}
            <div class="section">
                <h2>Flaky Cases (recent runs)</h2>
                <table>
                    <thead><tr><th>Case</th><th>Passed</th><th>Failed</th></tr></thead>
                    <tbody>
                        {{range .Flaky}}
                        <tr><td>{{.Name}}</td><td>{{.Passed}}</td><td>{{.Failed}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>
</body>
</html>
`
