package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/feeder"
	"github.com/torosent/apicontract/internal/spec"
)

// CaseConfig is one case as declared in a case file. Case files are decoded
// with yaml.v3 rather than viper so that parameter names keep their case.
type CaseConfig struct {
	Name                string              `yaml:"name"`
	Method              string              `yaml:"method"`
	Path                string              `yaml:"path"`
	PathParams          map[string]string   `yaml:"path_params,omitempty"`
	QueryParams         map[string]string   `yaml:"query_params,omitempty"`
	Headers             map[string]string   `yaml:"headers,omitempty"`
	Body                *Body               `yaml:"body,omitempty"`
	BodyFile            string              `yaml:"body_file,omitempty"`
	ExpectedStatus      int                 `yaml:"expected_status,omitempty"`
	ExpectedContentType string              `yaml:"expected_content_type,omitempty"`
	Assertions          []AssertionConfig   `yaml:"assertions,omitempty"`
	Tags                []string            `yaml:"tags,omitempty"`
	Matrix              map[string][]string `yaml:"matrix,omitempty"`
	Feeder              *FeederConfig       `yaml:"feeder,omitempty"`

	baseDir string
}

type AssertionConfig struct {
	Path  string `yaml:"path"`
	Kind  string `yaml:"kind"`
	Value string `yaml:"value,omitempty"`
}

type FeederConfig struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"`
}

// Body is a declared request payload. A scalar is sent verbatim; a mapping
// or sequence is encoded as JSON.
type Body struct {
	Raw string
}

func (b *Body) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.Raw = node.Value
		return nil
	}
	var value interface{}
	if err := node.Decode(&value); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	b.Raw = string(encoded)
	return nil
}

func (b Body) MarshalYAML() (interface{}, error) {
	return b.Raw, nil
}

type caseDocument struct {
	Cases []CaseConfig `yaml:"cases"`
}

// ParseCases decodes a YAML or JSON case document. Relative body_file and
// feeder paths are resolved against baseDir.
func ParseCases(data []byte, baseDir string) ([]CaseConfig, error) {
	var doc caseDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	for i := range doc.Cases {
		doc.Cases[i].baseDir = baseDir
	}
	return doc.Cases, nil
}

// LoadCaseFile reads the cases declared in a file.
func LoadCaseFile(path string) ([]CaseConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	cases, err := ParseCases(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// WriteCases encodes cases in the case file format.
func WriteCases(path string, cases []CaseConfig) error {
	data, err := yaml.Marshal(caseDocument{Cases: cases})
	if err != nil {
		return fmt.Errorf("encode cases: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// BuildCases turns declarations into executable cases, expanding matrix and
// feeder declarations. Defaults from the response spec apply to cases that
// do not declare an expected status. Every built case must have a distinct
// name, compared case-insensitively.
func BuildCases(decls []CaseConfig, defaults spec.ResponseSpec) ([]endpoint.Case, error) {
	var out []endpoint.Case
	seen := make(map[string]int)
	for idx, decl := range decls {
		cases, err := decl.Build(defaults)
		if err != nil {
			label := strings.TrimSpace(decl.Name)
			if label == "" {
				label = fmt.Sprintf("cases[%d]", idx)
			}
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		for _, c := range cases {
			key := strings.ToLower(c.ID())
			if prev, ok := seen[key]; ok {
				return nil, fmt.Errorf("cases[%d]: case name %q already produced by cases[%d]", idx, c.ID(), prev)
			}
			seen[key] = idx
		}
		out = append(out, cases...)
	}
	return out, nil
}

// Build converts a single declaration. Structural problems the case itself
// can report, such as a missing path parameter, are left for execution so
// they surface as a setup error of that case only.
func (d CaseConfig) Build(defaults spec.ResponseSpec) ([]endpoint.Case, error) {
	c := endpoint.Case{
		Name:                strings.TrimSpace(d.Name),
		Method:              endpoint.Method(strings.ToUpper(strings.TrimSpace(d.Method))),
		Path:                strings.TrimSpace(d.Path),
		PathParams:          d.PathParams,
		QueryParams:         d.QueryParams,
		Headers:             d.Headers,
		ExpectedStatus:      d.ExpectedStatus,
		ExpectedContentType: strings.TrimSpace(d.ExpectedContentType),
		Tags:                d.Tags,
	}
	if c.Method == "" {
		c.Method = endpoint.MethodGet
	}
	if c.ExpectedStatus == 0 {
		c.ExpectedStatus = defaults.Status
		if c.ExpectedContentType == "" {
			c.ExpectedContentType = defaults.ContentType
		}
	}

	switch {
	case d.Body != nil:
		c.Body = endpoint.StringBody(d.Body.Raw)
	case strings.TrimSpace(d.BodyFile) != "":
		data, err := os.ReadFile(d.resolve(d.BodyFile))
		if err != nil {
			return nil, fmt.Errorf("body_file: %w", err)
		}
		c.Body = endpoint.StringBody(string(data))
	}

	for idx, a := range d.Assertions {
		kind, err := endpoint.ParseAssertionKind(a.Kind)
		if err != nil {
			return nil, fmt.Errorf("assertions[%d]: %w", idx, err)
		}
		c.Assertions = append(c.Assertions, endpoint.Assertion{Path: a.Path, Kind: kind, Value: a.Value})
	}

	var records []endpoint.Record
	switch {
	case len(d.Matrix) > 0:
		records = endpoint.MatrixRecords(d.Matrix)
	case d.Feeder != nil:
		loaded, err := feeder.Load(d.resolve(d.Feeder.Path), feeder.Type(d.Feeder.Type))
		if err != nil {
			return nil, fmt.Errorf("feeder: %w", err)
		}
		records = loaded
	}
	return c.Expand(records), nil
}

func (d CaseConfig) resolve(path string) string {
	path = strings.TrimSpace(path)
	if filepath.IsAbs(path) || d.baseDir == "" {
		return path
	}
	return filepath.Join(d.baseDir, path)
}
