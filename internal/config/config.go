package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Defaults applied before the environment, the config file and flags.
const (
	DefaultBaseURL     = "https://api.example.com"
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 1
)

// Environment variables read once when the configuration is loaded.
const (
	EnvBaseURL = "BASE_URL"
	EnvToken   = "API_TOKEN"

	envClientSecret = "APICONTRACT_AUTH_CLIENT_SECRET"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config is the run configuration. It is built once at start-up and passed
// explicitly to the components that need it.
type Config struct {
	BaseURL     string
	Token       string
	Headers     map[string]string
	Timeout     time.Duration
	Concurrency int
	Rate        int
	Retries     int
	Cases       []CaseConfig
	CaseFiles   []string
	Run         []string
	Skip        []string
	Output      OutputFormat
	JUnitOutput string
	HTMLOutput  string
	XLSXOutput  string
	HistoryDB   string
	Auth        AuthConfig
	Tracing     TracingConfig
	LogLevel    string
	NoColor     bool
	Sample      bool
	ConfigFile  string
}

type AuthType string

const (
	AuthTypeStatic                  AuthType = "static"
	AuthTypeOAuth2ClientCredentials AuthType = "oauth2_client_credentials"
)

type AuthConfig struct {
	Type         AuthType
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// TracingConfig configures OpenTelemetry export. Tracing is enabled when an
// endpoint is set here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint    string
	Protocol    string
	Insecure    bool
	ServiceName string
	SampleRate  float64
	Propagate   *bool
}

// Enabled reports whether a tracing endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests. It defaults to on when tracing is enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.BaseURL) == "" {
		issues = append(issues, "base_url is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("base_url %q must be an absolute URL", c.BaseURL))
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	switch c.Output {
	case "", OutputText, OutputJSON:
	default:
		issues = append(issues, fmt.Sprintf("output must be 'text' or 'json', got %q", c.Output))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not supported", c.LogLevel))
	}
	for _, pattern := range append(append([]string(nil), c.Run...), c.Skip...) {
		if _, err := regexp.Compile(pattern); err != nil {
			issues = append(issues, fmt.Sprintf("filter %q: %v", pattern, err))
		}
	}
	if len(c.Cases) == 0 && len(c.CaseFiles) == 0 && !c.Sample {
		issues = append(issues, "no cases declared: use cases, case_files or --sample")
	}

	issues = append(issues, validateCases(c.Cases)...)
	issues = append(issues, validateAuthConfig(c.Auth)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateCases(cases []CaseConfig) []string {
	var issues []string
	seenNames := map[string]int{}
	for idx, c := range cases {
		if c.Body != nil && strings.TrimSpace(c.BodyFile) != "" {
			issues = append(issues, fmt.Sprintf("cases[%d]: body and body_file are mutually exclusive", idx))
		}
		if len(c.Matrix) > 0 && c.Feeder != nil {
			issues = append(issues, fmt.Sprintf("cases[%d]: matrix and feeder are mutually exclusive", idx))
		}
		if c.Feeder != nil {
			issues = append(issues, validateFeederConfig(idx, *c.Feeder)...)
		}
		name := strings.TrimSpace(c.Name)
		if name != "" {
			key := strings.ToLower(name)
			if prev, ok := seenNames[key]; ok {
				issues = append(issues, fmt.Sprintf("cases[%d]: duplicate name also defined at index %d", idx, prev))
			} else {
				seenNames[key] = idx
			}
		}
	}
	return issues
}

func validateFeederConfig(idx int, feeder FeederConfig) []string {
	var issues []string
	if strings.TrimSpace(feeder.Path) == "" {
		issues = append(issues, fmt.Sprintf("cases[%d]: feeder path is required", idx))
	}
	switch feeder.Type {
	case "", "csv", "json":
	default:
		issues = append(issues, fmt.Sprintf("cases[%d]: feeder type must be 'csv' or 'json', got %q", idx, feeder.Type))
	}
	return issues
}

func validateAuthConfig(auth AuthConfig) []string {
	var issues []string
	switch auth.Type {
	case "", AuthTypeStatic:
	case AuthTypeOAuth2ClientCredentials:
		if strings.TrimSpace(auth.TokenURL) == "" {
			issues = append(issues, "auth: token_url is required for oauth2_client_credentials")
		}
		if strings.TrimSpace(auth.ClientID) == "" {
			issues = append(issues, "auth: client_id is required for oauth2_client_credentials")
		}
		if strings.TrimSpace(auth.ClientSecret) == "" {
			issues = append(issues, "auth: client_secret is required for oauth2_client_credentials")
		}
	default:
		issues = append(issues, fmt.Sprintf("auth: unsupported type %q", auth.Type))
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
