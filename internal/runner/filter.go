package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/torosent/apicontract/internal/endpoint"
)

// RegexFilters selects cases. A case runs when MustMatch is empty or matches
// its name or one of its tags, and MustNotMatch matches neither.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// NewRegexFilters compiles run and skip patterns.
func NewRegexFilters(run, skip []string) (RegexFilters, error) {
	var f RegexFilters
	for _, p := range run {
		if err := f.MustMatch.Set(p); err != nil {
			return RegexFilters{}, fmt.Errorf("run filter: %w", err)
		}
	}
	for _, p := range skip {
		if err := f.MustNotMatch.Set(p); err != nil {
			return RegexFilters{}, fmt.Errorf("skip filter: %w", err)
		}
	}
	return f, nil
}

// Selects reports whether c should run.
func (r RegexFilters) Selects(c endpoint.Case) bool {
	keys := append([]string{c.ID()}, c.Tags...)
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(keys...)) &&
		!r.MustNotMatch.AnyMatch(keys...)
}

// IsDefined reports whether any pattern is set.
func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined()
}

// Describe renders the active filters for the console, or "" when none.
func (r RegexFilters) Describe() string {
	var parts []string
	if r.MustMatch.IsDefined() {
		parts = append(parts, "skip any not matching "+r.MustMatch.String())
	}
	if r.MustNotMatch.IsDefined() {
		parts = append(parts, "skip any matching "+r.MustNotMatch.String())
	}
	return strings.Join(parts, "; ")
}

// RegexList is a set of patterns; it satisfies pflag.Value.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set appends a pattern.
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

func (r RegexList) Type() string {
	return "regex"
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

// AnyMatch reports whether any pattern matches any of the given strings.
func (r RegexList) AnyMatch(ss ...string) bool {
	for _, p := range r.patterns {
		for _, s := range ss {
			if p.MatchString(s) {
				return true
			}
		}
	}
	return false
}
