package endpoint

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Record is one row of parameter data used to expand a case.
type Record map[string]string

var recordPattern = regexp.MustCompile(`\{\{([^}|]+)(?:\|([^}]*))?\}\}`)

// ApplyRecord replaces {{key}} and {{key|default}} tokens with record values.
// Tokens without a value or default are left as they are.
func ApplyRecord(template string, record Record) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return recordPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := recordPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		key := strings.TrimSpace(parts[1])
		if val, ok := record[key]; ok {
			return val
		}
		if strings.Contains(match, "|") {
			return parts[2]
		}
		return match
	})
}

// MatrixRecords returns the cartesian product of the matrix values. Keys are
// iterated in sorted order so the expansion is deterministic.
func MatrixRecords(matrix map[string][]string) []Record {
	if len(matrix) == 0 {
		return nil
	}
	keys := make([]string, 0, len(matrix))
	for key := range matrix {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := []Record{{}}
	for _, key := range keys {
		values := matrix[key]
		if len(values) == 0 {
			continue
		}
		next := make([]Record, 0, len(records)*len(values))
		for _, rec := range records {
			for _, value := range values {
				clone := make(Record, len(rec)+1)
				for k, v := range rec {
					clone[k] = v
				}
				clone[key] = value
				next = append(next, clone)
			}
		}
		records = next
	}
	if len(records) == 1 && len(records[0]) == 0 {
		return nil
	}
	return records
}

// Expand produces one case per record. A record key that names a path
// placeholder the case does not bind fills that path parameter; {{key}}
// tokens in parameter values, headers and the body are substituted; {key}
// tokens in the name are replaced, and names that would collide get a "#n"
// suffix. The receiver is not modified.
func (c Case) Expand(records []Record) []Case {
	if len(records) == 0 {
		return []Case{c}
	}

	placeholders := Placeholders(c.Path)
	out := make([]Case, 0, len(records))
	for _, rec := range records {
		derived := c.clone()

		for _, name := range placeholders {
			if _, bound := c.PathParams[name]; bound {
				continue
			}
			if val, ok := rec[name]; ok {
				if derived.PathParams == nil {
					derived.PathParams = map[string]string{}
				}
				derived.PathParams[name] = val
			}
		}
		for key, value := range derived.PathParams {
			derived.PathParams[key] = ApplyRecord(value, rec)
		}
		for key, value := range derived.QueryParams {
			derived.QueryParams[key] = ApplyRecord(value, rec)
		}
		for key, value := range derived.Headers {
			derived.Headers[key] = ApplyRecord(value, rec)
		}
		if derived.Body != nil {
			body := ApplyRecord(*derived.Body, rec)
			derived.Body = &body
		}
		for i, a := range derived.Assertions {
			derived.Assertions[i].Value = ApplyRecord(a.Value, rec)
		}

		name := c.Name
		for key, value := range rec {
			name = strings.ReplaceAll(name, "{"+key+"}", value)
		}
		if name == c.Name {
			name = c.ID()
		}
		derived.Name = name

		out = append(out, derived)
	}
	disambiguate(out)
	return out
}

// disambiguate appends " #n" to every name that occurs more than once, n
// counting occurrences of that name from 1. Generated names never collide
// with a name already in the set.
func disambiguate(cases []Case) {
	counts := make(map[string]int, len(cases))
	for _, c := range cases {
		counts[c.Name]++
	}
	taken := make(map[string]bool, len(cases))
	for name, n := range counts {
		if n == 1 {
			taken[name] = true
		}
	}
	next := make(map[string]int)
	for i := range cases {
		base := cases[i].Name
		if counts[base] == 1 {
			continue
		}
		for {
			next[base]++
			candidate := fmt.Sprintf("%s #%d", base, next[base])
			if !taken[candidate] {
				taken[candidate] = true
				cases[i].Name = candidate
				break
			}
		}
	}
}

func (c Case) clone() Case {
	d := c
	d.PathParams = cloneMap(c.PathParams)
	d.QueryParams = cloneMap(c.QueryParams)
	d.Headers = cloneMap(c.Headers)
	if c.Body != nil {
		body := *c.Body
		d.Body = &body
	}
	if c.Assertions != nil {
		d.Assertions = append([]Assertion(nil), c.Assertions...)
	}
	if c.Tags != nil {
		d.Tags = append([]string(nil), c.Tags...)
	}
	return d
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
