package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"

	"github.com/torosent/apicontract/internal/auth"
	"github.com/torosent/apicontract/internal/config"
	"github.com/torosent/apicontract/internal/executor"
	"github.com/torosent/apicontract/internal/history"
	"github.com/torosent/apicontract/internal/isolation"
	"github.com/torosent/apicontract/internal/metrics"
	"github.com/torosent/apicontract/internal/output"
	"github.com/torosent/apicontract/internal/result"
	"github.com/torosent/apicontract/internal/runner"
	"github.com/torosent/apicontract/internal/spec"
	"github.com/torosent/apicontract/internal/stubapi"
	"github.com/torosent/apicontract/internal/tracing"
)

const (
	progressInterval = time.Second
	flakyWindow      = 10
)

func runCases(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(stderr, cfg.LogLevel)
	if cfg.NoColor {
		color.NoColor = true
	}

	decls := cfg.Cases
	if cfg.Sample {
		sample, err := config.ParseCases(stubapi.SampleCases(), "")
		if err != nil {
			return fmt.Errorf("sample cases: %w", err)
		}
		decls = append(decls, sample...)
	}
	cases, err := config.BuildCases(decls, spec.BuildResponseSpec(0, ""))
	if err != nil {
		return err
	}

	filters, err := runner.NewRegexFilters(cfg.Run, cfg.Skip)
	if err != nil {
		return err
	}

	base, err := spec.BuildRequestSpec(cfg.BaseURL, cfg.Headers)
	if err != nil {
		return err
	}

	provider, err := buildAuthProvider(cfg)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
	}
	token, err := auth.ResolveToken(ctx, provider)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing, base.BaseURL())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	runID := ulid.Make().String()
	logger.Info("starting run",
		"run_id", runID,
		"base_url", base.BaseURL(),
		"cases", len(cases),
		"token", token.String(),
		"concurrency", cfg.Concurrency,
	)
	if filters.IsDefined() {
		logger.Info("case filter", "filter", filters.Describe())
	}

	ctrl := isolation.NewController(base, token, nil, cfg.Timeout)
	defer ctrl.Close()
	exec := executor.New(
		executor.WithTimeout(cfg.Timeout),
		executor.WithLogger(logger),
		executor.WithTracing(tp),
	)

	collector := metrics.NewCollector()
	jsonOutput := cfg.Output == config.OutputJSON
	var console runner.CaseLogger
	if !jsonOutput {
		console = output.NewConsoleLogger(stdout, strings.EqualFold(cfg.LogLevel, "debug"))
	}

	var wrapped runner.CaseExecutor = runner.Isolated(ctrl, exec)
	if cfg.Retries > 0 {
		wrapped = runner.WithRetry(wrapped, runner.NewRetryPolicy(cfg.Retries))
	}
	wrapped = runner.WithLogging(wrapped, caseLoggers{collector, console})

	r := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		RatePerSecond: cfg.Rate,
		Executor:      wrapped,
		Filter:        filters,
	})

	var progress *output.ProgressReporter
	if jsonOutput {
		progress = output.NewProgressReporter(collector, len(cases), progressInterval, stderr)
		progress.Start()
	}

	started := time.Now()
	runCtx, endRunSpan := tp.StartRun(ctx, runID, len(cases))
	res := r.Run(runCtx, cases)
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}

	summary := result.Summarize(runID, base.BaseURL(), started, res.Duration, res.Results, len(res.Skipped))
	endRunSpan(summary.Failed + summary.SetupErrors)
	stats := metrics.Collect(res.Results).Stats(res.Duration)

	if jsonOutput {
		if err := output.PrintJSONReport(stdout, summary, stats); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, summary, stats)
	}

	var flaky []output.FlakyCase
	if cfg.HistoryDB != "" {
		flaky, err = recordHistory(ctx, cfg.HistoryDB, summary)
		if err != nil {
			return err
		}
	}

	if err := writeReports(cfg, summary, stats, flaky); err != nil {
		return err
	}

	logger.Info("run finished",
		"run_id", runID,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"setup_errors", summary.SetupErrors,
		"skipped", summary.Skipped,
		"resets", ctrl.Resets(),
	)

	if !summary.OK() {
		return errCasesFailed
	}
	return nil
}

// recordHistory stores the run and returns the cases that flipped outcome
// across the recent runs, including this one.
func recordHistory(ctx context.Context, path string, summary result.Summary) ([]output.FlakyCase, error) {
	store, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.Record(context.WithoutCancel(ctx), history.FromSummary(summary)); err != nil {
		return nil, err
	}
	rows, err := store.Flaky(context.WithoutCancel(ctx), flakyWindow)
	if err != nil {
		return nil, err
	}
	flaky := make([]output.FlakyCase, 0, len(rows))
	for _, f := range rows {
		flaky = append(flaky, output.FlakyCase{Name: f.Name, Passed: f.Passed, Failed: f.Failed})
	}
	return flaky, nil
}

func writeReports(cfg *config.Config, summary result.Summary, stats metrics.Stats, flaky []output.FlakyCase) error {
	reports := []struct {
		path  string
		label string
		write func(io.Writer) error
	}{
		{cfg.JUnitOutput, "JUnit report", func(w io.Writer) error { return output.WriteJUnit(w, summary) }},
		{cfg.HTMLOutput, "HTML report", func(w io.Writer) error { return output.GenerateHTMLReport(w, summary, stats, flaky) }},
		{cfg.XLSXOutput, "XLSX report", func(w io.Writer) error { return output.WriteXLSX(w, summary) }},
	}
	for _, rep := range reports {
		if rep.path == "" {
			continue
		}
		if err := writeFile(rep.path, rep.write); err != nil {
			return fmt.Errorf("failed to write %s: %w", rep.label, err)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// caseLoggers fans a result out to several loggers, skipping nil entries.
type caseLoggers []runner.CaseLogger

func (l caseLoggers) LogCase(r result.TestResult) {
	for _, logger := range l {
		if logger != nil {
			logger.LogCase(r)
		}
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
