package runner_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/result"
	"github.com/torosent/apicontract/internal/runner"
)

// fakeExecutor passes every case after a latency derived from its index.
type fakeExecutor struct {
	latency func(c endpoint.Case) time.Duration
	calls   *int64
	outcome result.Outcome
}

func (f *fakeExecutor) Execute(ctx context.Context, c endpoint.Case) result.TestResult {
	if f.calls != nil {
		atomic.AddInt64(f.calls, 1)
	}
	if f.latency != nil {
		select {
		case <-time.After(f.latency(c)):
		case <-ctx.Done():
		}
	}
	outcome := f.outcome
	if outcome == "" {
		outcome = result.Passed
	}
	return result.TestResult{Case: c.ID(), Method: string(c.Method), Path: c.Path, Outcome: outcome}
}

func makeCases(n int) []endpoint.Case {
	cases := make([]endpoint.Case, n)
	for i := range cases {
		cases[i] = endpoint.Case{
			Name:           fmt.Sprintf("case-%02d", i),
			Method:         endpoint.MethodGet,
			Path:           "/health",
			ExpectedStatus: 200,
		}
	}
	return cases
}

func TestRunnerExecutesEveryCaseOnce(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency: 4,
		Executor:    &fakeExecutor{calls: &calls},
	})
	res := r.Run(context.Background(), makeCases(25))
	if len(res.Results) != 25 {
		t.Fatalf("expected 25 results, got %d", len(res.Results))
	}
	if calls != 25 {
		t.Fatalf("expected executor called 25 times, got %d", calls)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
}

// TestRunnerPreservesDeclarationOrder makes early cases slowest so completion
// order is the reverse of declaration order.
func TestRunnerPreservesDeclarationOrder(t *testing.T) {
	cases := makeCases(8)
	latency := func(c endpoint.Case) time.Duration {
		var i int
		fmt.Sscanf(c.Name, "case-%d", &i)
		return time.Duration(8-i) * 5 * time.Millisecond
	}
	r := runner.New(runner.Options{
		Concurrency: 8,
		Executor:    &fakeExecutor{latency: latency},
	})
	res := r.Run(context.Background(), cases)
	for i, got := range res.Results {
		if got.Case != cases[i].Name {
			t.Fatalf("result %d is %q, want %q", i, got.Case, cases[i].Name)
		}
	}
}

// TestRateLimiterCapsThroughput ensures the limiter paces case starts.
func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency:   5,
		RatePerSecond: 100,
		Executor:      &fakeExecutor{calls: &calls},
	})
	start := time.Now()
	r.Run(context.Background(), makeCases(20))
	elapsed := time.Since(start)
	// 20 starts at 100/s with a burst of 1 need at least ~190ms.
	if elapsed < 150*time.Millisecond {
		t.Fatalf("rate limiting not applied: %s", elapsed)
	}
	if calls != 20 {
		t.Fatalf("expected 20 calls, got %d", calls)
	}
}

func TestRunnerUsesLimiterFactory(t *testing.T) {
	var requested int
	r := runner.New(runner.Options{
		RatePerSecond: 7,
		Executor:      &fakeExecutor{},
		LimiterFactory: func(rps int) *rate.Limiter {
			requested = rps
			return rate.NewLimiter(rate.Inf, 0)
		},
	})
	r.Run(context.Background(), makeCases(1))
	if requested != 7 {
		t.Fatalf("expected factory called with 7, got %d", requested)
	}
}

func TestRunnerCancelledCasesAreTransportFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int64
	exec := runner.CaseExecutorFunc(func(ctx context.Context, c endpoint.Case) result.TestResult {
		if atomic.AddInt64(&calls, 1) == 1 {
			cancel()
		}
		return result.TestResult{Case: c.ID(), Outcome: result.Passed}
	})

	r := runner.New(runner.Options{Concurrency: 1, Executor: exec})
	res := r.Run(ctx, makeCases(5))

	if len(res.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(res.Results))
	}
	if res.Results[0].Outcome != result.Passed {
		t.Fatalf("first case should have passed, got %s", res.Results[0].Outcome)
	}
	last := res.Results[4]
	if last.Outcome != result.Failed || last.Kind != result.KindTransportError {
		t.Fatalf("expected unstarted case to fail with a transport error, got %s/%s", last.Outcome, last.Kind)
	}
	if last.Case != "case-04" {
		t.Fatalf("unstarted result lost its case name: %q", last.Case)
	}
	if last.Cause == "" {
		t.Fatalf("expected a cancellation cause")
	}
}

func TestRunnerRecoversPanicsAsSetupErrors(t *testing.T) {
	exec := runner.CaseExecutorFunc(func(ctx context.Context, c endpoint.Case) result.TestResult {
		if c.Name == "case-01" {
			panic("boom")
		}
		return result.TestResult{Case: c.ID(), Outcome: result.Passed}
	})
	res := runner.New(runner.Options{Executor: exec}).Run(context.Background(), makeCases(3))

	if res.Results[1].Outcome != result.SetupError {
		t.Fatalf("expected setup error for panicking case, got %s", res.Results[1].Outcome)
	}
	if res.Results[0].Outcome != result.Passed || res.Results[2].Outcome != result.Passed {
		t.Fatalf("panic affected other cases: %+v", res.Results)
	}
}

func TestRunnerWithoutExecutor(t *testing.T) {
	res := runner.New(runner.Options{}).Run(context.Background(), makeCases(1))
	if res.Results[0].Outcome != result.SetupError {
		t.Fatalf("expected setup error, got %s", res.Results[0].Outcome)
	}
}

func TestRunnerAppliesFilter(t *testing.T) {
	cases := makeCases(4)
	cases[2].Tags = []string{"smoke"}

	filter, err := runner.NewRegexFilters([]string{"case-00", "^smoke$"}, nil)
	if err != nil {
		t.Fatalf("NewRegexFilters error = %v", err)
	}
	var calls int64
	res := runner.New(runner.Options{
		Executor: &fakeExecutor{calls: &calls},
		Filter:   filter,
	}).Run(context.Background(), cases)

	if calls != 2 {
		t.Fatalf("expected 2 executed cases, got %d", calls)
	}
	if res.Results[0].Case != "case-00" || res.Results[1].Case != "case-02" {
		t.Fatalf("unexpected selection: %+v", res.Results)
	}
	if len(res.Skipped) != 2 || res.Skipped[0] != "case-01" || res.Skipped[1] != "case-03" {
		t.Fatalf("unexpected skipped list: %v", res.Skipped)
	}
}
