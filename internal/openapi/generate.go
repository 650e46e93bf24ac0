// Package openapi turns an OpenAPI 3 document into declarative cases.
package openapi

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/apicontract/internal/config"
)

// InvalidBody is the payload sent by invalid-request variants.
const InvalidBody = "invalid_data"

var defaultStatus = map[string]int{
	"GET":    200,
	"POST":   201,
	"PUT":    200,
	"PATCH":  200,
	"DELETE": 204,
	"HEAD":   200,
}

var slugPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// Generate reads the document at path and returns its cases.
func Generate(path string) ([]config.CaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read OpenAPI document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Cases()
}

// Cases emits, per operation, a success variant, an invalid-request variant
// for operations that take input, and a response-structure variant for GET.
func (d *Document) Cases() ([]config.CaseConfig, error) {
	ops, err := d.Operations()
	if err != nil {
		return nil, err
	}

	var cases []config.CaseConfig
	for _, op := range ops {
		name := operationName(op)
		pathParams, queryParams := d.sampleParameters(op)
		hasBody := op.Method == "POST" || op.Method == "PUT" || op.Method == "PATCH"

		status := successStatus(op)
		success := config.CaseConfig{
			Name:           name,
			Method:         op.Method,
			Path:           op.Path,
			PathParams:     pathParams,
			QueryParams:    queryParams,
			ExpectedStatus: status,
			Tags:           op.Tags,
		}
		if status >= 200 && status < 300 && status != 204 {
			success.ExpectedContentType = "application/json"
		}
		if hasBody {
			body, err := d.sampleBody(op)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			success.Body = &config.Body{Raw: body}
		}
		cases = append(cases, success)

		if hasBody || len(op.Parameters) > 0 {
			cases = append(cases, config.CaseConfig{
				Name:           name + " invalid request",
				Method:         op.Method,
				Path:           op.Path,
				PathParams:     pathParams,
				Body:           &config.Body{Raw: InvalidBody},
				ExpectedStatus: 400,
				Tags:           appendTag(op.Tags, "negative"),
			})
		}

		if op.Method == "GET" {
			cases = append(cases, config.CaseConfig{
				Name:           name + " response structure",
				Method:         op.Method,
				Path:           op.Path,
				PathParams:     pathParams,
				QueryParams:    queryParams,
				ExpectedStatus: status,
				Assertions:     []config.AssertionConfig{{Path: "$", Kind: "not_null"}},
				Tags:           appendTag(op.Tags, "structure"),
			})
		}
	}
	return cases, nil
}

func operationName(op Operation) string {
	if op.OperationID != "" {
		return op.OperationID
	}
	return strings.ToLower(op.Method) + "_" + strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(op.Path), "_"), "_")
}

// successStatus is the first declared response code, falling back to the
// method default for ranges ("2XX") and "default".
func successStatus(op Operation) int {
	if code, err := strconv.Atoi(op.FirstResponse()); err == nil && code >= 100 && code <= 599 {
		return code
	}
	return defaultStatus[op.Method]
}

// sampleParameters supplies every path parameter and every required query
// parameter. Values come from the parameter example when present, otherwise
// "test_<name>".
func (d *Document) sampleParameters(op Operation) (map[string]string, map[string]string) {
	var pathParams, queryParams map[string]string
	for _, p := range op.Parameters {
		if p == nil {
			continue
		}
		value := "test_" + p.Name
		if p.Example != nil {
			value = fmt.Sprint(p.Example)
		}
		switch p.In {
		case "path":
			if pathParams == nil {
				pathParams = map[string]string{}
			}
			pathParams[p.Name] = value
		case "query":
			if !p.Required {
				continue
			}
			if queryParams == nil {
				queryParams = map[string]string{}
			}
			queryParams[p.Name] = value
		}
	}
	return pathParams, queryParams
}

// sampleBody builds a JSON body from the request schema, or "{}" when the
// operation declares none.
func (d *Document) sampleBody(op Operation) (string, error) {
	if op.RequestBody == nil {
		return "{}", nil
	}
	media, ok := op.RequestBody.Content["application/json"]
	if !ok || media.Schema == nil {
		return "{}", nil
	}
	value := d.sampleValue("", media.Schema, 0)
	if value == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode sample body: %w", err)
	}
	return string(encoded), nil
}

func (d *Document) sampleValue(name string, s *Schema, depth int) interface{} {
	s = d.resolveSchema(s, 0)
	if s == nil || depth > 8 {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch s.Type {
	case "object", "":
		if len(s.Properties) == 0 {
			if s.Type == "" {
				return nil
			}
			return map[string]interface{}{}
		}
		obj := make(map[string]interface{}, len(s.Properties))
		keys := make([]string, 0, len(s.Properties))
		for k := range s.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := d.sampleValue(k, s.Properties[k], depth+1); v != nil {
				obj[k] = v
			}
		}
		return obj
	case "array":
		return []interface{}{}
	case "integer":
		return 123
	case "number":
		return 123.45
	case "boolean":
		return true
	default:
		return sampleString(name, s.Format)
	}
}

func sampleString(name, format string) string {
	lower := strings.ToLower(name)
	switch {
	case format == "email" || strings.Contains(lower, "email"):
		return "test@example.com"
	case strings.Contains(lower, "password"):
		return "password123"
	case strings.Contains(lower, "name"):
		return "Test User"
	case format == "date-time":
		return "2024-01-01T00:00:00Z"
	case format == "date":
		return "2024-01-01"
	case format == "uuid":
		return "00000000-0000-0000-0000-000000000000"
	default:
		return "test_" + name
	}
}

func appendTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags)+1)
	out = append(out, tags...)
	return append(out, tag)
}
