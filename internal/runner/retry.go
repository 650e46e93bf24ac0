package runner

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/result"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// CaseLogger receives every terminal result.
type CaseLogger interface {
	LogCase(r result.TestResult)
}

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int                                                     // total attempts including initial try
	Delay       time.Duration                                           // fixed delay between retries (used if DelayFunc nil)
	ShouldRetry func(result.TestResult) bool                            // predicate; if nil, transport errors are retried
	DelayFunc   func(attempt int, last result.TestResult) time.Duration // dynamic backoff; attempt is 1-based
}

// NewRetryPolicy returns exponential backoff with jitter for the given number
// of retries. Only transport errors are retried.
func NewRetryPolicy(retries int) RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: IsTransportError,
		DelayFunc: func(attempt int, _ result.TestResult) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

// IsTransportError reports whether r failed before a response was received.
// Timeouts and assertion failures are not retried.
func IsTransportError(r result.TestResult) bool {
	return r.Outcome == result.Failed && r.Kind == result.KindTransportError
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}

type retryExecutor struct {
	inner  CaseExecutor
	policy RetryPolicy
}

// WithRetry wraps an executor with retry capability.
func WithRetry(exec CaseExecutor, policy RetryPolicy) CaseExecutor {
	if policy.MaxAttempts <= 1 {
		return exec
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = IsTransportError
	}
	return &retryExecutor{inner: exec, policy: policy}
}

func (r *retryExecutor) Execute(ctx context.Context, c endpoint.Case) result.TestResult {
	var last result.TestResult
	var elapsed time.Duration
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		last = r.inner.Execute(ctx, c)
		elapsed += last.Duration
		last.Attempts = attempt
		last.SetDuration(elapsed)

		if attempt == r.policy.MaxAttempts || !r.policy.ShouldRetry(last) || ctx.Err() != nil {
			return last
		}

		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt, last)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return last
			}
		}
	}
	return last
}

type loggingExecutor struct {
	inner  CaseExecutor
	logger CaseLogger
}

// WithLogging wraps an executor to report every result.
func WithLogging(exec CaseExecutor, logger CaseLogger) CaseExecutor {
	if logger == nil {
		return exec
	}
	return &loggingExecutor{inner: exec, logger: logger}
}

func (l *loggingExecutor) Execute(ctx context.Context, c endpoint.Case) result.TestResult {
	res := l.inner.Execute(ctx, c)
	l.logger.LogCase(res)
	return res
}
