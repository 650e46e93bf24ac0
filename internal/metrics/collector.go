package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/apicontract/internal/result"
)

// Collector records per-case results in a thread-safe manner.
type Collector struct {
	mu          sync.Mutex
	hist        *hdrhistogram.Histogram
	passed      int64
	failed      int64
	setupErrors int64
	minLatency  time.Duration
	maxLatency  time.Duration
	sumLatency  time.Duration
	timed       int64
	byKind      map[string]int64
	byStatus    map[string]map[string]int
}

// Stats represents aggregated metrics.
type Stats struct {
	Total       int64         `json:"total"`
	Passed      int64         `json:"passed"`
	Failed      int64         `json:"failed"`
	SetupErrors int64         `json:"setup_errors"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P90Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`
	Duration    time.Duration `json:"-"`
	CasesPerSec float64       `json:"cases_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms"`
	Failures      map[string]int `json:"failures,omitempty"`
	StatusBuckets []StatusBucket `json:"status_buckets,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:     h,
		byKind:   make(map[string]int64),
		byStatus: make(map[string]map[string]int),
	}
}

// LogCase records r; it lets the collector sit in a runner logging chain.
func (c *Collector) LogCase(r result.TestResult) {
	c.RecordResult(r)
}

// RecordResult records one terminal case result. Setup errors never reached
// the network and do not contribute latency samples.
func (c *Collector) RecordResult(r result.TestResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch r.Outcome {
	case result.Passed:
		c.passed++
	case result.SetupError:
		c.setupErrors++
		c.byKind[FriendlyOutcomeName(r)]++
		return
	default:
		c.failed++
		c.byKind[FriendlyOutcomeName(r)]++
		if r.Status > 0 {
			method := r.Method
			if method == "" {
				method = "UNKNOWN"
			}
			if c.byStatus[method] == nil {
				c.byStatus[method] = make(map[string]int)
			}
			c.byStatus[method][itoa(r.Status)]++
		}
	}

	latency := r.Duration
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	c.timed++

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.passed + c.failed + c.setupErrors
	stats := Stats{
		Total:       total,
		Passed:      c.passed,
		Failed:      c.failed,
		SetupErrors: c.setupErrors,
		MinLatency:  c.minLatency,
		MaxLatency:  c.maxLatency,
	}

	if c.timed > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.timed)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
	stats.P90LatencyMs = float64(stats.P90Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.CasesPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.byKind) > 0 {
		stats.Failures = make(map[string]int, len(c.byKind))
		for k, v := range c.byKind {
			stats.Failures[k] = int(v)
		}
	}
	stats.StatusBuckets = FlattenStatusBuckets(c.byStatus)

	return stats
}

// Collect builds a collector from a finished run.
func Collect(results []result.TestResult) *Collector {
	c := NewCollector()
	for _, r := range results {
		c.RecordResult(r)
	}
	return c
}
