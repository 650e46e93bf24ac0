package runner

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/result"
)

// CaseExecutor runs one case to a terminal result. Implementations never
// return a non-terminal outcome.
type CaseExecutor interface {
	Execute(ctx context.Context, c endpoint.Case) result.TestResult
}

// CaseExecutorFunc adapts a function to CaseExecutor.
type CaseExecutorFunc func(ctx context.Context, c endpoint.Case) result.TestResult

func (f CaseExecutorFunc) Execute(ctx context.Context, c endpoint.Case) result.TestResult {
	return f(ctx, c)
}

// Options configure the Runner.
type Options struct {
	Concurrency    int                         // number of worker goroutines
	RatePerSecond  int                         // cases started per second (0 means unlimited)
	Executor       CaseExecutor                // case executor (required)
	Filter         RegexFilters                // run/skip selection by name or tag
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
