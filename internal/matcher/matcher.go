// Package matcher evaluates body assertions against a JSON response body.
package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/result"
)

// UnparsableBody is the diagnostic used when assertions exist but the body is
// not JSON.
const UnparsableBody = "unparsable body"

const maxObservedLen = 120

// Logger receives warnings about assertions that could not be evaluated.
type Logger interface {
	Warn(format string, args ...interface{})
}

// Evaluate applies every assertion in order and returns one mismatch per
// failed assertion. A body that is not valid JSON yields a single
// UnparsableBody mismatch and no assertion is evaluated.
func Evaluate(body []byte, assertions []endpoint.Assertion, logger Logger) []result.Mismatch {
	if len(assertions) == 0 {
		return nil
	}

	if !gjson.ValidBytes(body) {
		return []result.Mismatch{{
			Check:    result.CheckBody,
			Expected: "JSON body",
			Observed: truncate(string(body)),
			Message:  UnparsableBody,
		}}
	}

	var mismatches []result.Mismatch
	for _, a := range assertions {
		if m, failed := evaluateOne(body, a, logger); failed {
			mismatches = append(mismatches, m)
		}
	}
	return mismatches
}

func evaluateOne(body []byte, a endpoint.Assertion, logger Logger) (result.Mismatch, bool) {
	value := lookup(body, a.Path)
	mismatch := result.Mismatch{Check: result.CheckBody, Assertion: a.String()}

	switch a.Kind {
	case endpoint.AssertExists:
		if value.Exists() {
			return mismatch, false
		}
		mismatch.Expected = "present"
		mismatch.Observed = "missing"

	case endpoint.AssertNotNull:
		if value.Exists() && value.Type != gjson.Null {
			return mismatch, false
		}
		mismatch.Expected = "non-null"
		mismatch.Observed = describe(value)

	case endpoint.AssertEquals:
		if value.Exists() && equalValues(value, a.Value) {
			return mismatch, false
		}
		mismatch.Expected = a.Value
		mismatch.Observed = describe(value)

	case endpoint.AssertMinSize:
		n, err := strconv.Atoi(strings.TrimSpace(a.Value))
		if err != nil {
			if logger != nil {
				logger.Warn("min_size value is not an integer: %s", a.Value)
			}
			mismatch.Message = fmt.Sprintf("invalid min_size %q", a.Value)
			return mismatch, true
		}
		mismatch.Expected = fmt.Sprintf("array with size >= %d", n)
		if !value.IsArray() {
			mismatch.Observed = describe(value)
			return mismatch, true
		}
		size := len(value.Array())
		if size >= n {
			return mismatch, false
		}
		mismatch.Observed = fmt.Sprintf("array with size %d", size)

	case endpoint.AssertHasKey:
		key := strings.TrimSpace(a.Value)
		mismatch.Expected = fmt.Sprintf("object with key %q", key)
		if !value.IsObject() {
			mismatch.Observed = describe(value)
			return mismatch, true
		}
		found := false
		value.ForEach(func(k, _ gjson.Result) bool {
			if k.String() == key {
				found = true
				return false
			}
			return true
		})
		if found {
			return mismatch, false
		}
		mismatch.Observed = "key missing"

	case endpoint.AssertMatches:
		re, err := regexp.Compile(a.Value)
		if err != nil {
			if logger != nil {
				logger.Warn("Invalid regex pattern: %s (error: %v)", a.Value, err)
			}
			mismatch.Message = fmt.Sprintf("invalid pattern %q", a.Value)
			return mismatch, true
		}
		if value.Exists() && re.MatchString(value.String()) {
			return mismatch, false
		}
		mismatch.Expected = fmt.Sprintf("match /%s/", a.Value)
		mismatch.Observed = describe(value)

	default:
		if logger != nil {
			logger.Warn("unsupported assertion kind: %s", a.Kind)
		}
		mismatch.Message = fmt.Sprintf("unsupported assertion kind %q", a.Kind)
	}

	return mismatch, true
}

// equalValues compares numerically when both sides are numbers, and by
// string form otherwise.
func equalValues(value gjson.Result, expected string) bool {
	if value.Type == gjson.Number {
		if f, err := strconv.ParseFloat(strings.TrimSpace(expected), 64); err == nil {
			return value.Float() == f
		}
	}
	if value.Type == gjson.Null {
		return expected == "null"
	}
	if value.IsObject() || value.IsArray() {
		return gjson.Parse(expected).Raw != "" && compactJSON(value.Raw) == compactJSON(expected)
	}
	return value.String() == expected
}

func compactJSON(raw string) string {
	return gjson.Get(raw, "@ugly").Raw
}

func describe(value gjson.Result) string {
	if !value.Exists() {
		return "missing"
	}
	switch value.Type {
	case gjson.Null:
		return "null"
	case gjson.String:
		return truncate(value.String())
	default:
		return truncate(value.Raw)
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxObservedLen {
		return s
	}
	cut := maxObservedLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
