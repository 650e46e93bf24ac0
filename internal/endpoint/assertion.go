package endpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AssertionKind names a predicate over the parsed response body.
type AssertionKind string

const (
	// AssertEquals: value at Path equals Value.
	AssertEquals AssertionKind = "equals"
	// AssertNotNull: value at Path exists and is not JSON null.
	AssertNotNull AssertionKind = "not_null"
	// AssertExists: value at Path exists (null allowed).
	AssertExists AssertionKind = "exists"
	// AssertMinSize: value at Path is an array with at least Value elements.
	AssertMinSize AssertionKind = "min_size"
	// AssertHasKey: object at Path has the key named by Value.
	AssertHasKey AssertionKind = "has_key"
	// AssertMatches: string form of the value at Path matches the regex Value.
	AssertMatches AssertionKind = "matches"
)

// Assertion is one predicate descriptor. Path is a gjson path; "$" or an
// empty path addresses the whole body and a leading "$." is accepted.
type Assertion struct {
	Path  string
	Kind  AssertionKind
	Value string
}

// Equals builds an equals assertion.
func Equals(path, value string) Assertion {
	return Assertion{Path: path, Kind: AssertEquals, Value: value}
}

// NotNull builds a not_null assertion.
func NotNull(path string) Assertion {
	return Assertion{Path: path, Kind: AssertNotNull}
}

// Exists builds an exists assertion.
func Exists(path string) Assertion {
	return Assertion{Path: path, Kind: AssertExists}
}

// MinSize builds a min_size assertion.
func MinSize(path string, n int) Assertion {
	return Assertion{Path: path, Kind: AssertMinSize, Value: strconv.Itoa(n)}
}

// HasKey builds a has_key assertion.
func HasKey(path, key string) Assertion {
	return Assertion{Path: path, Kind: AssertHasKey, Value: key}
}

// Matches builds a matches assertion.
func Matches(path, pattern string) Assertion {
	return Assertion{Path: path, Kind: AssertMatches, Value: pattern}
}

// ParseAssertionKind normalizes a kind name; dashes and case are ignored.
func ParseAssertionKind(raw string) (AssertionKind, error) {
	k := AssertionKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	switch k {
	case AssertEquals, AssertNotNull, AssertExists, AssertMinSize, AssertHasKey, AssertMatches:
		return k, nil
	case "equal_to", "eq":
		return AssertEquals, nil
	case "not_null_value", "notnull":
		return AssertNotNull, nil
	case "has_size", "size_at_least":
		return AssertMinSize, nil
	}
	return "", fmt.Errorf("unsupported assertion kind %q", raw)
}

// Validate checks that the assertion is self-consistent.
func (a Assertion) Validate() error {
	switch a.Kind {
	case AssertEquals, AssertNotNull, AssertExists:
		return nil
	case AssertMinSize:
		n, err := strconv.Atoi(strings.TrimSpace(a.Value))
		if err != nil || n < 0 {
			return fmt.Errorf("min_size needs a non-negative integer, got %q", a.Value)
		}
		return nil
	case AssertHasKey:
		if strings.TrimSpace(a.Value) == "" {
			return fmt.Errorf("has_key needs a key name")
		}
		return nil
	case AssertMatches:
		if _, err := regexp.Compile(a.Value); err != nil {
			return fmt.Errorf("matches: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported assertion kind %q", a.Kind)
	}
}

// String renders the assertion the way it is reported in diagnostics.
func (a Assertion) String() string {
	path := a.Path
	if path == "" {
		path = "$"
	}
	switch a.Kind {
	case AssertNotNull, AssertExists:
		return fmt.Sprintf("%s %s", path, a.Kind)
	default:
		return fmt.Sprintf("%s %s %s", path, a.Kind, a.Value)
	}
}
