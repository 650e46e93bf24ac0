package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/torosent/apicontract/internal/result"
)

type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Name    string       `xml:"name,attr"`
	Tests   int          `xml:"tests,attr"`
	Fails   int          `xml:"failures,attr"`
	Errors  int          `xml:"errors,attr"`
	Time    string       `xml:"time,attr"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Fails     int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// WriteJUnit renders the run as JUnit XML. Setup errors map to <error>,
// every other non-passing case to <failure>.
func WriteJUnit(w io.Writer, summary result.Summary) error {
	suite := junitSuite{
		Name:    "apicontract",
		Tests:   summary.Total,
		Fails:   summary.Failed,
		Errors:  summary.SetupErrors,
		Skipped: summary.Skipped,
		Time:    seconds(summary.DurationMs),
	}
	if !summary.StartedAt.IsZero() {
		suite.Timestamp = summary.StartedAt.UTC().Format("2006-01-02T15:04:05")
	}

	for _, r := range summary.Results {
		tc := junitCase{
			Name:      r.Case,
			ClassName: fmt.Sprintf("%s %s", r.Method, r.Path),
			Time:      seconds(r.DurationMs),
		}
		switch r.Outcome {
		case result.Passed:
		case result.SetupError:
			tc.Error = &junitProblem{Message: r.SetupIssue, Type: string(result.SetupError), Body: r.Detail()}
		default:
			tc.Failure = &junitProblem{Message: r.Detail(), Type: string(r.Kind), Body: failureBody(r)}
		}
		suite.Cases = append(suite.Cases, tc)
	}

	doc := junitSuites{
		Name:   "apicontract",
		Tests:  suite.Tests,
		Fails:  suite.Fails,
		Errors: suite.Errors,
		Time:   suite.Time,
		Suites: []junitSuite{suite},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func failureBody(r result.TestResult) string {
	var b strings.Builder
	for _, m := range r.Mismatches {
		b.WriteString(m.String())
		b.WriteString("\n")
	}
	if r.Cause != "" {
		b.WriteString(r.Cause)
		b.WriteString("\n")
	}
	if r.BodySnippet != "" {
		b.WriteString("body: ")
		b.WriteString(r.BodySnippet)
		b.WriteString("\n")
	}
	if r.Curl != "" {
		b.WriteString(r.Curl)
		b.WriteString("\n")
	}
	return b.String()
}

func seconds(ms float64) string {
	return fmt.Sprintf("%.3f", ms/1000)
}
