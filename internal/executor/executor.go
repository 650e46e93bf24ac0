// Package executor performs one case: it builds the request from a request
// spec, issues a single bounded HTTP call and evaluates every expectation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/httpclient"
	"github.com/torosent/apicontract/internal/isolation"
	"github.com/torosent/apicontract/internal/matcher"
	"github.com/torosent/apicontract/internal/result"
	"github.com/torosent/apicontract/internal/spec"
	"github.com/torosent/apicontract/internal/tracing"
)

const (
	// DefaultTimeout bounds a single HTTP call.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes    = 10 << 20
	maxSnippetBytes = 512
)

// Executor runs cases. It holds no per-case state and is safe for concurrent
// use; retries are not its concern.
type Executor struct {
	timeout   time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer
	propagate bool
	client    *http.Client
}

type Option func(*Executor)

// WithTimeout sets the per-call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracing records one span per case and, when the provider asks for it,
// propagates the trace context on the outgoing request.
func WithTracing(p *tracing.Provider) Option {
	return func(e *Executor) {
		e.tracer = p.Tracer()
		e.propagate = p.ShouldPropagate()
	}
}

// WithClient sets the client used by Execute. ExecuteSession ignores it.
func WithClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("apicontract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = httpclient.NewStatelessClient(nil, e.timeout)
	}
	return e
}

// Timeout returns the per-call timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs c against rs with the executor's own client. That client keeps
// no cookies, but it shares connections across calls; use ExecuteSession for
// an isolated case.
func (e *Executor) Execute(ctx context.Context, rs spec.RequestSpec, c endpoint.Case) result.TestResult {
	return e.ExecuteWith(ctx, e.client, rs, c)
}

// ExecuteSession runs c inside an isolated session.
func (e *Executor) ExecuteSession(ctx context.Context, s *isolation.Session, c endpoint.Case) result.TestResult {
	return e.ExecuteWith(ctx, s.Client, s.Spec, c)
}

// ExecuteWith runs c against rs using client. The returned result is always
// terminal: Passed, Failed or SetupError.
func (e *Executor) ExecuteWith(ctx context.Context, client *http.Client, rs spec.RequestSpec, c endpoint.Case) (res result.TestResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	res = result.TestResult{
		Case:     c.ID(),
		Method:   string(c.Method),
		Path:     c.Path,
		Tags:     c.Tags,
		Expected: c.ExpectedStatus,
		Outcome:  result.Pending,
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("case panicked", "case", res.Case, "panic", r)
			res.Outcome = result.SetupError
			res.Kind = result.KindNone
			res.SetupIssue = fmt.Sprintf("panic: %v", r)
		}
		res.SetDuration(time.Since(start))
	}()

	if err := c.Validate(); err != nil {
		setupFailure(&res, err)
		return res
	}

	res.Outcome = result.Executing
	ctx, span := tracing.StartCaseSpan(ctx, e.tracer, c)
	defer func() { tracing.EndCaseSpan(span, res) }()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := httpclient.BuildRequest(callCtx, rs, c)
	if err != nil {
		setupFailure(&res, err)
		return res
	}
	res.URL = req.URL.String()
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	curl := httpclient.CurlCommand(req, c.Body)

	e.logger.Debug("executing case", "case", res.Case, "method", req.Method, "url", res.URL)
	res.Attempts = 1

	resp, err := client.Do(req)
	if err != nil {
		transportFailure(&res, callCtx, err)
		res.Curl = curl
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		transportFailure(&res, callCtx, fmt.Errorf("read body: %w", err))
		res.Curl = curl
		return res
	}

	res.Status = resp.StatusCode
	res.Mismatches = e.check(c, resp, body)
	res.Finalize()
	if !res.Passed() {
		res.Curl = curl
		res.BodySnippet = snippet(body)
	}
	return res
}

// check compares status, content type and body assertions. Nothing
// short-circuits: every failing check is reported.
func (e *Executor) check(c endpoint.Case, resp *http.Response, body []byte) []result.Mismatch {
	var mismatches []result.Mismatch

	if resp.StatusCode != c.ExpectedStatus {
		mismatches = append(mismatches, result.Mismatch{
			Check:    result.CheckStatus,
			Expected: strconv.Itoa(c.ExpectedStatus),
			Observed: strconv.Itoa(resp.StatusCode),
		})
	}

	if c.ExpectedContentType != "" {
		observed := resp.Header.Get(spec.HeaderContentType)
		if !spec.ContentTypeMatches(c.ExpectedContentType, observed) {
			if observed == "" {
				observed = "<none>"
			}
			mismatches = append(mismatches, result.Mismatch{
				Check:    result.CheckContentType,
				Expected: c.ExpectedContentType,
				Observed: observed,
			})
		}
	}

	return append(mismatches, matcher.Evaluate(body, c.Assertions, warnLogger{e.logger, c.ID()})...)
}

func setupFailure(res *result.TestResult, err error) {
	res.Outcome = result.SetupError
	res.Kind = result.KindNone
	var setupErr *endpoint.SetupError
	if errors.As(err, &setupErr) && len(setupErr.Issues) > 0 {
		res.SetupIssue = strings.Join(setupErr.Issues, "; ")
		return
	}
	res.SetupIssue = err.Error()
}

func transportFailure(res *result.TestResult, callCtx context.Context, err error) {
	res.Outcome = result.Failed
	res.Kind = result.KindTransportError
	if httpclient.IsTimeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		res.Kind = result.KindTimeout
	}
	res.Cause = err.Error()
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxSnippetBytes {
		return s
	}
	cut := maxSnippetBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// warnLogger adapts slog to the matcher's printf-style logger.
type warnLogger struct {
	l    *slog.Logger
	name string
}

func (w warnLogger) Warn(format string, args ...interface{}) {
	w.l.Warn(fmt.Sprintf(format, args...), "case", w.name)
}
