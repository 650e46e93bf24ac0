package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/result"
)

// Result captures the outcome of a run. Results are in declaration order of
// the selected cases.
type Result struct {
	Results  []result.TestResult
	Skipped  []string
	Duration time.Duration
}

// Runner executes a suite of cases on a bounded worker pool.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run executes every selected case exactly once. Cases that have not started
// when ctx is done are reported as transport failures carrying the
// cancellation cause.
func (r *Runner) Run(ctx context.Context, cases []endpoint.Case) Result {
	start := time.Now()

	selected := make([]endpoint.Case, 0, len(cases))
	var skipped []string
	for _, c := range cases {
		if r.opt.Filter.Selects(c) {
			selected = append(selected, c)
			continue
		}
		skipped = append(skipped, c.ID())
	}

	results := make([]result.TestResult, len(selected))
	limiter := r.opt.LimiterFactory(r.opt.RatePerSecond)
	permits := make(chan int, r.opt.Concurrency)

	// Scheduler: serializes pacing so workers cannot burst past the limit.
	go func() {
		defer close(permits)
		for i := range selected {
			if ctx.Err() != nil {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case permits <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Concurrency)
	for w := 0; w < r.opt.Concurrency; w++ {
		go func() {
			defer wg.Done()
			for i := range permits {
				results[i] = r.execute(ctx, selected[i])
			}
		}()
	}
	wg.Wait()

	for i := range results {
		if !results[i].Outcome.Terminal() {
			results[i] = cancelled(ctx, selected[i])
		}
	}

	return Result{
		Results:  results,
		Skipped:  skipped,
		Duration: time.Since(start),
	}
}

func (r *Runner) execute(ctx context.Context, c endpoint.Case) (res result.TestResult) {
	defer func() {
		if p := recover(); p != nil {
			res = base(c)
			res.Outcome = result.SetupError
			res.SetupIssue = fmt.Sprintf("panic: %v", p)
		}
	}()
	if r.opt.Executor == nil {
		res = base(c)
		res.Outcome = result.SetupError
		res.SetupIssue = "no executor configured"
		return res
	}
	return r.opt.Executor.Execute(ctx, c)
}

func cancelled(ctx context.Context, c endpoint.Case) result.TestResult {
	res := base(c)
	res.Outcome = result.Failed
	res.Kind = result.KindTransportError
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	res.Cause = "not started: " + cause.Error()
	return res
}

func base(c endpoint.Case) result.TestResult {
	return result.TestResult{
		Case:     c.ID(),
		Method:   string(c.Method),
		Path:     c.Path,
		Tags:     c.Tags,
		Expected: c.ExpectedStatus,
	}
}
