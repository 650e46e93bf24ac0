// Package metrics aggregates case results into run statistics.
//
// The [Collector] records the outcome and latency of each case. Latencies go
// into an HDR histogram so percentiles stay accurate at any run size:
//
//	collector := metrics.NewCollector()
//	collector.RecordResult(res)
//	stats := collector.Stats(elapsed)
//
// A collector is also a runner case logger, so it can record results as they
// complete instead of after the run.
//
// [Stats] carries outcome counts, min/mean/p50/p90/p99 latency, throughput,
// failure counts keyed by a readable label and the failing status codes per
// method.
package metrics
