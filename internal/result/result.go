// Package result defines the outcome of executing a case and the run summary
// built from those outcomes.
package result

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the state of a case. A case moves from Pending to Executing and
// ends in exactly one of Passed, Failed or SetupError.
type Outcome string

const (
	Pending    Outcome = "pending"
	Executing  Outcome = "executing"
	Passed     Outcome = "passed"
	Failed     Outcome = "failed"
	SetupError Outcome = "setup_error"
)

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool {
	return o == Passed || o == Failed || o == SetupError
}

// FailureKind classifies a Failed outcome.
type FailureKind string

const (
	KindNone             FailureKind = ""
	KindAssertionFailure FailureKind = "AssertionFailure"
	KindTransportError   FailureKind = "TransportError"
	KindTimeout          FailureKind = "Timeout"
)

// Check names the part of the response a mismatch refers to.
type Check string

const (
	CheckStatus      Check = "status"
	CheckContentType Check = "content-type"
	CheckBody        Check = "body"
)

// Mismatch is one failed expectation.
type Mismatch struct {
	Check     Check  `json:"check"`
	Assertion string `json:"assertion,omitempty"`
	Expected  string `json:"expected"`
	Observed  string `json:"observed"`
	Message   string `json:"message,omitempty"`
}

func (m Mismatch) String() string {
	var b strings.Builder
	b.WriteString(string(m.Check))
	if m.Assertion != "" {
		b.WriteString(" [")
		b.WriteString(m.Assertion)
		b.WriteString("]")
	}
	b.WriteString(": ")
	if m.Message != "" {
		b.WriteString(m.Message)
		return b.String()
	}
	fmt.Fprintf(&b, "expected %s, got %s", m.Expected, m.Observed)
	return b.String()
}

// TestResult is the outcome of one case.
type TestResult struct {
	Case        string        `json:"case"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	URL         string        `json:"url,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Expected    int           `json:"expected_status,omitempty"`
	Outcome     Outcome       `json:"outcome"`
	Kind        FailureKind   `json:"kind,omitempty"`
	Mismatches  []Mismatch    `json:"mismatches,omitempty"`
	SetupIssue  string        `json:"setup_issue,omitempty"`
	Cause       string        `json:"cause,omitempty"`
	Status      int           `json:"status,omitempty"`
	Duration    time.Duration `json:"-"`
	DurationMs  float64       `json:"duration_ms"`
	Attempts    int           `json:"attempts,omitempty"`
	Curl        string        `json:"curl,omitempty"`
	BodySnippet string        `json:"body_snippet,omitempty"`
}

// Passed reports whether the case passed.
func (r TestResult) Passed() bool {
	return r.Outcome == Passed
}

// Detail renders a one-line diagnostic, or "" for a passed case.
func (r TestResult) Detail() string {
	switch r.Outcome {
	case SetupError:
		return "setup error: " + r.SetupIssue
	case Failed:
		switch r.Kind {
		case KindTransportError, KindTimeout:
			return fmt.Sprintf("%s: %s", r.Kind, r.Cause)
		default:
			parts := make([]string, 0, len(r.Mismatches))
			for _, m := range r.Mismatches {
				parts = append(parts, m.String())
			}
			return strings.Join(parts, "; ")
		}
	}
	return ""
}

// Finalize sets the outcome from the collected mismatches when the call
// completed. Callers that hit a setup or transport problem set the outcome
// directly instead.
func (r *TestResult) Finalize() {
	if len(r.Mismatches) > 0 {
		r.Outcome = Failed
		r.Kind = KindAssertionFailure
		return
	}
	r.Outcome = Passed
	r.Kind = KindNone
}

// SetDuration records the elapsed time in both the native and the JSON form.
func (r *TestResult) SetDuration(d time.Duration) {
	r.Duration = d
	r.DurationMs = float64(d.Microseconds()) / 1000.0
}
