// Package endpoint holds the declarative description of one endpoint
// invocation and its expected outcome.
package endpoint

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Method is an HTTP method accepted in a case declaration.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

// ParseMethod normalizes a method name and rejects anything outside
// GET/POST/PUT/PATCH/DELETE.
func ParseMethod(raw string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported method %q", raw)
	}
	return m, nil
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// Case is one declared endpoint invocation. Cases are built once when the
// suite is loaded and never mutated afterwards; Expand returns copies.
type Case struct {
	Name                string
	Method              Method
	Path                string
	PathParams          map[string]string
	QueryParams         map[string]string
	Headers             map[string]string
	Body                *string
	ExpectedStatus      int
	ExpectedContentType string
	Assertions          []Assertion
	Tags                []string
}

// StringBody is a convenience for declaring a literal body.
func StringBody(s string) *string {
	return &s
}

// HasBody reports whether a body was declared.
func (c Case) HasBody() bool {
	return c.Body != nil
}

var placeholderPattern = regexp.MustCompile(`\{([^{}/]*)\}`)

// Placeholders returns the distinct {name} tokens of a path template in order
// of first appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// SetupError describes a case that cannot be executed as declared. It is
// reported before any network call.
type SetupError struct {
	Case   string
	Issues []string
}

func (e *SetupError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("case %q: invalid setup", e.Case)
	}
	return fmt.Sprintf("case %q: %s", e.Case, strings.Join(e.Issues, "; "))
}

// Validate checks the case's invariants: a supported method, a plausible
// expected status, well-formed assertions and an exact match between the
// path template's placeholders and the supplied path parameters.
func (c Case) Validate() error {
	var issues []string

	if !c.Method.Valid() {
		issues = append(issues, fmt.Sprintf("unsupported method %q", c.Method))
	}
	if strings.TrimSpace(c.Path) == "" {
		issues = append(issues, "path is required")
	} else if !strings.HasPrefix(c.Path, "/") {
		issues = append(issues, fmt.Sprintf("path %q must start with /", c.Path))
	}
	if c.ExpectedStatus < 100 || c.ExpectedStatus > 599 {
		issues = append(issues, fmt.Sprintf("expected status %d is not a valid HTTP status", c.ExpectedStatus))
	}

	placeholders := Placeholders(c.Path)
	declared := make(map[string]struct{}, len(placeholders))
	for _, name := range placeholders {
		declared[name] = struct{}{}
		if name == "" {
			issues = append(issues, "path template contains an empty placeholder {}")
			continue
		}
		if _, ok := c.PathParams[name]; !ok {
			issues = append(issues, fmt.Sprintf("path parameter %q is referenced by %s but not supplied", name, c.Path))
		}
	}
	for _, name := range sortedKeys(c.PathParams) {
		if _, ok := declared[name]; !ok {
			issues = append(issues, fmt.Sprintf("path parameter %q is supplied but not referenced by %s", name, c.Path))
		}
	}

	for idx, a := range c.Assertions {
		if err := a.Validate(); err != nil {
			issues = append(issues, fmt.Sprintf("assertions[%d]: %v", idx, err))
		}
	}

	if len(issues) > 0 {
		return &SetupError{Case: c.Name, Issues: issues}
	}
	return nil
}

// ResolvePath substitutes path parameters into the template. Values are
// path-escaped. The case must have passed Validate.
func (c Case) ResolvePath() (string, error) {
	var missing []string
	resolved := placeholderPattern.ReplaceAllStringFunc(c.Path, func(token string) string {
		name := strings.TrimSpace(token[1 : len(token)-1])
		value, ok := c.PathParams[name]
		if !ok {
			missing = append(missing, name)
			return token
		}
		return url.PathEscape(value)
	})
	if len(missing) > 0 {
		return "", &SetupError{Case: c.Name, Issues: []string{fmt.Sprintf("unresolved path parameters: %s", strings.Join(missing, ", "))}}
	}
	return resolved, nil
}

// EncodedQuery renders query parameters with keys in sorted order.
func (c Case) EncodedQuery() string {
	if len(c.QueryParams) == 0 {
		return ""
	}
	values := url.Values{}
	for key, value := range c.QueryParams {
		values.Set(key, value)
	}
	return values.Encode()
}

// ID returns a stable identifier for reporting: the name when set, otherwise
// "METHOD path".
func (c Case) ID() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s %s", c.Method, c.Path)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
