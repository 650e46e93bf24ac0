// Package runner executes a suite of endpoint cases.
//
// Cases run on a bounded worker pool with optional pacing. Each case is
// handed to a [CaseExecutor]; in production that is [Isolated], which takes a
// fresh session from an isolation controller before every case so no state
// crosses case boundaries. Results come back in declaration order whatever
// the completion order.
//
// # Basic Usage
//
//	opts := runner.Options{
//		Concurrency:   4,
//		RatePerSecond: 20,
//		Executor:      runner.Isolated(ctrl, exec),
//	}
//	res := runner.New(opts).Run(ctx, cases)
//
// # Middleware
//
// Executors compose:
//   - [WithRetry]: re-run cases that failed with a transport error
//   - [WithLogging]: report each result as it completes
//
// # Selection
//
// [RegexFilters] picks cases by name or tag; unselected cases are listed in
// [Result.Skipped].
package runner
