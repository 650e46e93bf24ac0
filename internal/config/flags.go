package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all run flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apicontract run",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all run flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("base-url", "", "Base URL of the API under test (env BASE_URL)")
	flags.String("token", "", "Bearer token sent with every case (env API_TOKEN)")
	flags.StringSlice("header", nil, "Additional request header in key=value form")

	// Case selection flags
	flags.StringSliceP("cases", "f", nil, "Case file (YAML or JSON), repeatable")
	flags.StringSlice("run", nil, "Only run cases whose name or tag matches the regex, repeatable")
	flags.StringSlice("skip", nil, "Skip cases whose name or tag matches the regex, repeatable")
	flags.Bool("sample", false, "Run the built-in sample cases for the stub API")

	// Execution flags
	flags.IntP("concurrency", "c", DefaultConcurrency, "Number of cases executed in parallel")
	flags.IntP("rate", "r", 0, "Cases started per second (0 means unlimited)")
	flags.Duration("timeout", DefaultTimeout, "Per-call timeout")
	flags.Int("retries", 0, "Retries for cases that fail with a transport error")

	// Output flags
	flags.StringP("output", "o", string(OutputText), "Report format on stdout: text or json")
	flags.String("junit-output", "", "Write a JUnit XML report to the specified file path")
	flags.String("html-output", "", "Write an HTML report to the specified file path")
	flags.String("xlsx-output", "", "Write an XLSX report to the specified file path")
	flags.String("history-db", "", "Record the run in the SQLite database at this path")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("no-color", false, "Disable colored console output")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for case spans")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and the environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringTargets := []struct {
		flag   string
		target *string
	}{
		{"base-url", &cfg.BaseURL},
		{"token", &cfg.Token},
		{"junit-output", &cfg.JUnitOutput},
		{"html-output", &cfg.HTMLOutput},
		{"xlsx-output", &cfg.XLSXOutput},
		{"history-db", &cfg.HistoryDB},
		{"log-level", &cfg.LogLevel},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
	}
	for _, s := range stringTargets {
		if !fs.Changed(s.flag) {
			continue
		}
		val, err := fs.GetString(s.flag)
		if err != nil {
			return err
		}
		*s.target = strings.TrimSpace(val)
	}

	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("sample") {
		val, err := fs.GetBool("sample")
		if err != nil {
			return err
		}
		cfg.Sample = val
	}
	if fs.Changed("no-color") {
		val, err := fs.GetBool("no-color")
		if err != nil {
			return err
		}
		cfg.NoColor = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	if fs.Changed("cases") {
		vals, err := fs.GetStringSlice("cases")
		if err != nil {
			return err
		}
		cfg.CaseFiles = append(cfg.CaseFiles, vals...)
	}
	if fs.Changed("run") {
		vals, err := fs.GetStringSlice("run")
		if err != nil {
			return err
		}
		cfg.Run = vals
	}
	if fs.Changed("skip") {
		vals, err := fs.GetStringSlice("skip")
		if err != nil {
			return err
		}
		cfg.Skip = vals
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	for _, raw := range vals {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid header %q: expected key=value", raw)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers[http.CanonicalHeaderKey(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return nil
}
