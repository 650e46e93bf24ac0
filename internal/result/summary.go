package result

import (
	"time"
)

// Summary aggregates every case result of a run.
type Summary struct {
	RunID       string        `json:"run_id"`
	BaseURL     string        `json:"base_url"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"-"`
	DurationMs  float64       `json:"duration_ms"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	SetupErrors int           `json:"setup_errors"`
	Skipped     int           `json:"skipped"`
	Results     []TestResult  `json:"results"`
}

// Summarize builds a Summary from results kept in declaration order.
func Summarize(runID, baseURL string, started time.Time, elapsed time.Duration, results []TestResult, skipped int) Summary {
	s := Summary{
		RunID:      runID,
		BaseURL:    baseURL,
		StartedAt:  started,
		Duration:   elapsed,
		DurationMs: float64(elapsed.Microseconds()) / 1000.0,
		Total:      len(results),
		Skipped:    skipped,
		Results:    results,
	}
	for _, r := range results {
		switch r.Outcome {
		case Passed:
			s.Passed++
		case SetupError:
			s.SetupErrors++
		default:
			s.Failed++
		}
	}
	return s
}

// OK reports whether every executed case passed. The process exit status is
// derived from it.
func (s Summary) OK() bool {
	return s.Passed == s.Total
}

// Failures returns the results that did not pass.
func (s Summary) Failures() []TestResult {
	var out []TestResult
	for _, r := range s.Results {
		if !r.Passed() {
			out = append(out, r)
		}
	}
	return out
}
