package openapi

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the subset of an OpenAPI 3 document the generator reads. Paths
// are kept as a node so declaration order survives decoding.
type Document struct {
	OpenAPI    string     `yaml:"openapi"`
	Paths      yaml.Node  `yaml:"paths"`
	Components Components `yaml:"components"`
}

type Components struct {
	Schemas    map[string]*Schema    `yaml:"schemas"`
	Parameters map[string]*Parameter `yaml:"parameters"`
}

type Parameter struct {
	Ref      string      `yaml:"$ref"`
	Name     string      `yaml:"name"`
	In       string      `yaml:"in"`
	Required bool        `yaml:"required"`
	Schema   *Schema     `yaml:"schema"`
	Example  interface{} `yaml:"example"`
}

type Schema struct {
	Ref        string             `yaml:"$ref"`
	Type       string             `yaml:"type"`
	Format     string             `yaml:"format"`
	Properties map[string]*Schema `yaml:"properties"`
	Items      *Schema            `yaml:"items"`
	Enum       []interface{}      `yaml:"enum"`
	Example    interface{}        `yaml:"example"`
}

type MediaType struct {
	Schema *Schema `yaml:"schema"`
}

type RequestBody struct {
	Ref      string               `yaml:"$ref"`
	Required bool                 `yaml:"required"`
	Content  map[string]MediaType `yaml:"content"`
}

// Operation is one method under a path.
type Operation struct {
	Method      string
	Path        string
	OperationID string       `yaml:"operationId"`
	Summary     string       `yaml:"summary"`
	Tags        []string     `yaml:"tags"`
	Parameters  []*Parameter `yaml:"parameters"`
	RequestBody *RequestBody `yaml:"requestBody"`
	Responses   yaml.Node    `yaml:"responses"`
}

var methods = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true, "delete": true, "head": true,
}

// Parse decodes a YAML or JSON OpenAPI document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode OpenAPI document: %w", err)
	}
	if doc.Paths.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("OpenAPI document has no paths")
	}
	return &doc, nil
}

// Operations lists every supported operation in declaration order. Path-level
// parameters are merged into each operation; operation parameters win.
func (d *Document) Operations() ([]Operation, error) {
	var ops []Operation
	for i := 0; i+1 < len(d.Paths.Content); i += 2 {
		path := d.Paths.Content[i].Value
		item := d.Paths.Content[i+1]
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("path %s: expected a mapping", path)
		}

		var shared []*Parameter
		for j := 0; j+1 < len(item.Content); j += 2 {
			if item.Content[j].Value == "parameters" {
				if err := item.Content[j+1].Decode(&shared); err != nil {
					return nil, fmt.Errorf("path %s parameters: %w", path, err)
				}
			}
		}

		for j := 0; j+1 < len(item.Content); j += 2 {
			method := strings.ToLower(item.Content[j].Value)
			if !methods[method] {
				continue
			}
			var op Operation
			if err := item.Content[j+1].Decode(&op); err != nil {
				return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), path, err)
			}
			op.Method = strings.ToUpper(method)
			op.Path = path

			params, err := d.mergeParameters(shared, op.Parameters)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", op.Method, path, err)
			}
			op.Parameters = params
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func (d *Document) mergeParameters(shared, own []*Parameter) ([]*Parameter, error) {
	var merged []*Parameter
	index := map[string]int{}
	for _, list := range [][]*Parameter{shared, own} {
		for _, p := range list {
			resolved, err := d.resolveParameter(p)
			if err != nil {
				return nil, err
			}
			key := resolved.In + ":" + resolved.Name
			if i, ok := index[key]; ok {
				merged[i] = resolved
				continue
			}
			index[key] = len(merged)
			merged = append(merged, resolved)
		}
	}
	return merged, nil
}

func (d *Document) resolveParameter(p *Parameter) (*Parameter, error) {
	if p == nil || p.Ref == "" {
		return p, nil
	}
	name, ok := strings.CutPrefix(p.Ref, "#/components/parameters/")
	if !ok {
		return nil, fmt.Errorf("unsupported parameter reference %q", p.Ref)
	}
	resolved, ok := d.Components.Parameters[name]
	if !ok {
		return nil, fmt.Errorf("unknown parameter %q", p.Ref)
	}
	return resolved, nil
}

// resolveSchema follows a local schema reference.
func (d *Document) resolveSchema(s *Schema, depth int) *Schema {
	for s != nil && s.Ref != "" && depth < 16 {
		name, ok := strings.CutPrefix(s.Ref, "#/components/schemas/")
		if !ok {
			return nil
		}
		s = d.Components.Schemas[name]
		depth++
	}
	return s
}

// FirstResponse returns the first declared response code, or "" when none.
func (op Operation) FirstResponse() string {
	if op.Responses.Kind != yaml.MappingNode || len(op.Responses.Content) == 0 {
		return ""
	}
	return op.Responses.Content[0].Value
}
