package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from the environment, files and
// command-line arguments. Precedence is flag > file > environment > default.
type Loader struct {
	// Getenv overrides the environment lookup in tests.
	Getenv func(string) (string, bool)
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	cfg := &Config{
		BaseURL:     DefaultBaseURL,
		Headers:     map[string]string{},
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Output:      OutputText,
		LogLevel:    "info",
		Tracing:     TracingConfig{SampleRate: 1.0},
	}

	l.applyEnv(cfg)

	configPath := strings.TrimSpace(flagSet.Lookup("config").Value.String())
	cfg.ConfigFile = configPath
	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := applyConfigSettings(cfg, cfgViper.AllSettings(), filepath.Dir(configPath)); err != nil {
			return nil, err
		}
		inline, err := LoadCaseFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Cases = append(cfg.Cases, inline...)
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Auth.ClientSecret == "" {
		if secret, ok := l.lookupEnv(envClientSecret); ok {
			cfg.Auth.ClientSecret = secret
		}
	}

	for _, path := range cfg.CaseFiles {
		cases, err := LoadCaseFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Cases = append(cfg.Cases, cases...)
	}

	return cfg, nil
}

// applyEnv reads BASE_URL and API_TOKEN through viper's environment binding.
func (l Loader) applyEnv(cfg *Config) {
	if l.Getenv != nil {
		if v, ok := l.Getenv(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
			cfg.BaseURL = v
		}
		if v, ok := l.Getenv(EnvToken); ok {
			cfg.Token = v
		}
		return
	}
	env := viper.New()
	_ = env.BindEnv("base_url", EnvBaseURL)
	_ = env.BindEnv("token", EnvToken)
	if v := env.GetString("base_url"); strings.TrimSpace(v) != "" {
		cfg.BaseURL = v
	}
	if env.IsSet("token") {
		cfg.Token = env.GetString("token")
	}
}

func (l Loader) lookupEnv(key string) (string, bool) {
	if l.Getenv != nil {
		return l.Getenv(key)
	}
	return os.LookupEnv(key)
}

// applyConfigSettings applies settings from a config file to the Config struct.
// Relative case file paths are resolved against baseDir.
func applyConfigSettings(cfg *Config, settings map[string]interface{}, baseDir string) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "baseurl", "base_url", "base-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			cfg.BaseURL = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "token"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		cfg.Token = val
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asHeaders(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asTimeout(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "casefiles", "case_files", "case-files"); ok {
		paths, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("case_files: %w", err)
		}
		for _, p := range paths {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			cfg.CaseFiles = append(cfg.CaseFiles, p)
		}
	}

	if raw, ok := lookupSetting(settings, "run"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		cfg.Run = vals
	}

	if raw, ok := lookupSetting(settings, "skip"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("skip: %w", err)
		}
		cfg.Skip = vals
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	outputs := []struct {
		keys   []string
		target *string
	}{
		{[]string{"junitoutput", "junit_output", "junit-output"}, &cfg.JUnitOutput},
		{[]string{"htmloutput", "html_output", "html-output"}, &cfg.HTMLOutput},
		{[]string{"xlsxoutput", "xlsx_output", "xlsx-output"}, &cfg.XLSXOutput},
		{[]string{"historydb", "history_db", "history-db"}, &cfg.HistoryDB},
		{[]string{"loglevel", "log_level", "log-level"}, &cfg.LogLevel},
	}
	for _, o := range outputs {
		if raw, ok := lookupSetting(settings, o.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", o.keys[1], err)
			}
			*o.target = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "nocolor", "no_color", "no-color"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("no_color: %w", err)
		}
		cfg.NoColor = val
	}

	if raw, ok := lookupSetting(settings, "auth"); ok {
		auth, err := parseAuth(raw)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		cfg.Auth = auth
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseAuth(value interface{}) (AuthConfig, error) {
	if value == nil {
		return AuthConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return AuthConfig{}, err
	}
	return buildAuthConfig(entry)
}

func buildAuthConfig(settings map[string]interface{}) (AuthConfig, error) {
	var auth AuthConfig
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("type: %w", err)
		}
		auth.Type = AuthType(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "tokenurl", "token_url", "token-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("token_url: %w", err)
		}
		auth.TokenURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "clientid", "client_id", "client-id"); ok {
		val, err := asString(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("client_id: %w", err)
		}
		auth.ClientID = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "clientsecret", "client_secret", "client-secret"); ok {
		val, err := asString(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("client_secret: %w", err)
		}
		auth.ClientSecret = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "scopes"); ok {
		scopes, err := asStringSlice(raw)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("scopes: %w", err)
		}
		auth.Scopes = scopes
	}
	return auth, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	t := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return t, nil
}
